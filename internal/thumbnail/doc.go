/*
Package thumbnail produces the preview image shown next to each catalog row.

Extractor opens a decode session, asks for the keyframe closest to one
second in, and closes the session. Failures of any kind come back as a nil
image. It keeps no state, so the result is a pure function of the path.

Cache sits in front of the extractor and plays the part of the image
pipeline:

	memory (bounded, FIFO) -> disk (<dir>/<hash>.jpg) -> Extractor

Concurrent requests for one path share a single decode. Only paths that pass
mediatypes.NeedsFrameExtraction reach the extractor; everything else gets
ErrNotVideo without touching the decoder. Frames are resized with imaging, or
with libvips once InitVips has been called, and stored as JPEG.
*/
package thumbnail
