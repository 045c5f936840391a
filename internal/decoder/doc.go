/*
Package decoder is the capability the catalog uses to look inside video
files: open a path, read codec and frame dimensions, grab one frame.

Decoding itself is delegated. FFmpeg runs ffprobe once when a session is
opened and ffmpeg once per frame request. decodertest.Fake serves fixed
facts from memory for tests.

A Session is scoped: whoever opens it closes it, on every path.

	sess, err := dec.Open(ctx, path)
	if err != nil {
	    return unavailable
	}
	defer sess.Close()

Closing a session cancels any ffmpeg process it still has running, so work
abandoned by a caller does not leak subprocesses.

FrameAt with SeekClosest seeks on the input side and returns the nearest
keyframe. SeekExact decodes forward to the requested timestamp and costs
proportionally more.
*/
package decoder
