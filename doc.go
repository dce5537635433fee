/*
go-footfall counts people crossing a line in a video and accumulates where
they walked into a heatmap.

Frames are pulled from a FrameSource, objects are detected and tracked by an
Engine, and each frame's tracked objects are observed by a Session which
holds the crossing Counter and the density Accumulator.  Crossing events can
be streamed to an EventSink such as the SQLite store as they happen.

See example code and usage in the example subdirectory.
*/
package footfall
