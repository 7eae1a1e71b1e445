/*
go-objtrail reconciles per-frame object detections with the persistent
identities assigned by an external multi-object tracker, and maintains a
bounded historical motion trail for every identity seen in a video or live
stream.

The core of the package is the glue state machine between a detector and a
tracker: it normalizes raw detections into per-frame records, resolves which
tracker identity each record belongs to, appends bounding box centers to the
per-identity trails and produces a FrameResult ready for rendering or
serialization.  The detection model and the tracker's association algorithm
are external collaborators behind the Detector and Tracker interfaces, with
implementations provided in the detect and tracker subpackages.

See example code and usage in the example subdirectory.
*/
package objtrail
