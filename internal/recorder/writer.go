package recorder

import "github.com/skywardavionics/flightcore/internal/flashfs"

// pageSize matches flashfs's page size so a PageWriter's flush boundary
// lines up with the underlying file's native write granularity.
const pageSize = 256

// defaultSyncEveryNBuffers is how often an explicit filesystem sync is
// issued beyond the implicit one on every flush, used by NewPageWriter when
// it is given a non-positive count (spec.md §4.8: "every full buffer, plus an explicit filesystem sync
// every 16 buffers").
const defaultSyncEveryNBuffers = 16

// PageWriter packs variable-length records back-to-back into fixed
// pageSize buffers, splitting a record across the page boundary when it
// doesn't fit, and flushing full pages to the underlying file.
type PageWriter struct {
	f               flashfs.File
	buf             [pageSize]byte
	pos             int
	buffersFlushed  int
	syncEveryBuffers int
}

func NewPageWriter(f flashfs.File, syncEveryBuffers int) *PageWriter {
	if syncEveryBuffers <= 0 {
		syncEveryBuffers = defaultSyncEveryNBuffers
	}
	return &PageWriter{f: f, syncEveryBuffers: syncEveryBuffers}
}

// Write appends one encoded record, splitting it across the page boundary
// and flushing full pages as needed (spec.md §4.8).
func (w *PageWriter) Write(rec []byte) error {
	for len(rec) > 0 {
		space := pageSize - w.pos
		n := len(rec)
		if n > space {
			n = space
		}
		copy(w.buf[w.pos:], rec[:n])
		w.pos += n
		rec = rec[n:]
		if w.pos == pageSize {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// flush writes the current buffer (full or not) to the file. A partial
// final buffer is zero-padded, since the writer tracks length out of band
// via record tags rather than a page length header.
func (w *PageWriter) flush() error {
	if w.pos == 0 {
		return nil
	}
	if _, err := w.f.Write(w.buf[:]); err != nil {
		return err
	}
	w.buf = [pageSize]byte{}
	w.pos = 0
	w.buffersFlushed++
	if w.buffersFlushed%w.syncEveryBuffers == 0 {
		return w.f.Sync()
	}
	return nil
}

// Close flushes any partial final buffer and closes the underlying file.
func (w *PageWriter) Close() error {
	if err := w.flush(); err != nil {
		return err
	}
	return w.f.Close()
}
