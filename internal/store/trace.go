package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"

	"github.com/san-kum/pbdsim/internal/pbd"
)

// Row types of a trace file.
const (
	RowBead = 0
	RowWire = 1
)

// Float is a coordinate printed with six decimals.
type Float float32

func (f Float) MarshalCSV() (string, error) {
	return strconv.FormatFloat(float64(f), 'f', 6, 64), nil
}

func (f *Float) UnmarshalCSV(s string) error {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Row is one line of a trace file: a bead (t=0) or the wire (t=1) of one
// group in one frame.
type Row struct {
	Frame int   `csv:"f"`
	Type  int   `csv:"t"`
	X     Float `csv:"x"`
	Y     Float `csv:"y"`
	R     Float `csv:"r"`
}

// TraceName is the file name of group i's trace.
func TraceName(i int) string {
	return fmt.Sprintf("out%06d.csv", i)
}

// Rows returns the BeadCount bead rows of g followed by its wire row.
func Rows(frame int, g *pbd.Group) []Row {
	rows := make([]Row, 0, pbd.BeadCount+1)
	for i := 0; i < pbd.BeadCount; i++ {
		rows = append(rows, Row{
			Frame: frame,
			Type:  RowBead,
			X:     Float(g.Pos[i].X),
			Y:     Float(g.Pos[i].Y),
			R:     Float(g.Radius[i]),
		})
	}
	return append(rows, Row{
		Frame: frame,
		Type:  RowWire,
		X:     Float(g.Wire.Center.X),
		Y:     Float(g.Wire.Center.Y),
		R:     Float(g.Wire.Radius),
	})
}

type traceFile struct {
	f             *os.File
	w             *bufio.Writer
	headerWritten bool
}

func createTrace(dir string, i int) (*traceFile, error) {
	f, err := os.Create(filepath.Join(dir, TraceName(i)))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", TraceName(i), err)
	}
	return &traceFile{f: f, w: bufio.NewWriter(f)}, nil
}

func (t *traceFile) write(rows []Row) error {
	if !t.headerWritten {
		t.headerWritten = true
		return gocsv.Marshal(rows, t.w)
	}
	return gocsv.MarshalWithoutHeaders(rows, t.w)
}

func (t *traceFile) close() error {
	flushErr := t.w.Flush()
	return errors.Join(flushErr, t.f.Close())
}

// TraceWriter streams every observed frame to one open file per group.
type TraceWriter struct {
	dir   string
	files []*traceFile
}

func NewTraceWriter(dir string) *TraceWriter {
	return &TraceWriter{dir: dir}
}

func (w *TraceWriter) Observe(frame int, groups []pbd.Group) error {
	if w.files == nil {
		w.files = make([]*traceFile, 0, len(groups))
		for i := range groups {
			tf, err := createTrace(w.dir, i)
			if err != nil {
				return err
			}
			w.files = append(w.files, tf)
		}
	}
	if len(groups) != len(w.files) {
		return fmt.Errorf("frame %d has %d groups, trace has %d", frame, len(groups), len(w.files))
	}
	for i := range groups {
		if err := w.files[i].write(Rows(frame, &groups[i])); err != nil {
			return fmt.Errorf("writing %s: %w", TraceName(i), err)
		}
	}
	return nil
}

// Close flushes and closes every file, reporting all failures.
func (w *TraceWriter) Close() error {
	var errs []error
	for _, tf := range w.files {
		errs = append(errs, tf.close())
	}
	w.files = nil
	return errors.Join(errs...)
}

// EndsWriter holds the first observed frame and writes each group's file in
// one pass when the second arrives, so only one file is open at a time.
type EndsWriter struct {
	dir        string
	first      []pbd.Group
	firstFrame int
	written    bool
}

func NewEndsWriter(dir string) *EndsWriter {
	return &EndsWriter{dir: dir}
}

func (w *EndsWriter) Observe(frame int, groups []pbd.Group) error {
	switch {
	case w.written:
		return fmt.Errorf("frame %d observed after both ends were written", frame)
	case w.first == nil:
		w.first = pbd.Clone(groups)
		w.firstFrame = frame
		return nil
	}
	if len(groups) != len(w.first) {
		return fmt.Errorf("frame %d has %d groups, first frame had %d", frame, len(groups), len(w.first))
	}
	w.written = true
	for i := range groups {
		tf, err := createTrace(w.dir, i)
		if err != nil {
			return err
		}
		err = tf.write(Rows(w.firstFrame, &w.first[i]))
		if err == nil {
			err = tf.write(Rows(frame, &groups[i]))
		}
		if err = errors.Join(err, tf.close()); err != nil {
			return fmt.Errorf("writing %s: %w", TraceName(i), err)
		}
	}
	w.first = nil
	return nil
}

// LoadTrace reads every row of a trace file.
func LoadTrace(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []Row
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// Frame is the state of one group in one observed frame.
type Frame struct {
	Index int
	Beads []Row
	Wire  Row
}

// SplitFrames groups rows by frame in file order.
func SplitFrames(rows []Row) ([]Frame, error) {
	var frames []Frame
	cur := Frame{Index: -1}
	for _, r := range rows {
		if cur.Index != r.Frame {
			if cur.Index >= 0 {
				return nil, fmt.Errorf("frame %d has no wire row", cur.Index)
			}
			cur = Frame{Index: r.Frame}
		}
		switch r.Type {
		case RowBead:
			cur.Beads = append(cur.Beads, r)
		case RowWire:
			cur.Wire = r
			frames = append(frames, cur)
			cur = Frame{Index: -1}
		default:
			return nil, fmt.Errorf("frame %d: unknown row type %d", r.Frame, r.Type)
		}
	}
	if cur.Index >= 0 {
		return nil, fmt.Errorf("frame %d has no wire row", cur.Index)
	}
	return frames, nil
}
