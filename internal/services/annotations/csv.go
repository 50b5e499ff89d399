package annotations

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/killallgit/trackreview-api/internal/models"
	"github.com/killallgit/trackreview-api/internal/services/review"
)

// Columns is the header a tracking file must carry. Order is free and extra
// columns are ignored.
var Columns = []string{"frame", "track_id", "class_id", "confidence", "x1", "y1", "x2", "y2"}

const sniffLen = 3072

// ParseCSV reads tracker output into detections. Any problem is reported as
// review.ErrMalformedAnnotationData with the offending line.
func ParseCSV(r io.Reader) ([]models.Detection, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("%w: reading file: %v", review.ErrMalformedAnnotationData, err)
	}
	if !isText(mimetype.Detect(head)) {
		return nil, fmt.Errorf("%w: not a text file", review.ErrMalformedAnnotationData)
	}

	reader := csv.NewReader(br)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing header", review.ErrMalformedAnnotationData)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var detections []models.Detection
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", review.ErrMalformedAnnotationData, err)
		}
		if isBlank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		d, err := parseRow(record, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", review.ErrMalformedAnnotationData, line, err)
		}
		detections = append(detections, d)
	}

	if len(detections) == 0 {
		return nil, fmt.Errorf("%w: no detections", review.ErrMalformedAnnotationData)
	}
	return detections, nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	var missing []string
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: header missing columns %s", review.ErrMalformedAnnotationData, strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(record []string, cols map[string]int) (models.Detection, error) {
	field := func(name string) (string, error) {
		i := cols[name]
		if i >= len(record) {
			return "", fmt.Errorf("missing %s", name)
		}
		return strings.TrimSpace(record[i]), nil
	}

	var d models.Detection
	var err error

	if d.Frame, err = intField(field, "frame"); err != nil {
		return d, err
	}
	if d.Frame < 0 {
		return d, fmt.Errorf("frame must be >= 0, got %d", d.Frame)
	}
	if d.ClassID, err = intField(field, "class_id"); err != nil {
		return d, err
	}

	raw, err := field("track_id")
	if err != nil {
		return d, err
	}
	if d.TrackID = normalizeTrackID(raw); d.TrackID == "" {
		return d, errors.New("track_id is empty")
	}

	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"confidence", &d.Confidence},
		{"x1", &d.X1},
		{"y1", &d.Y1},
		{"x2", &d.X2},
		{"y2", &d.Y2},
	} {
		if *f.dst, err = floatField(field, f.name); err != nil {
			return d, err
		}
	}
	return d, nil
}

func intField(field func(string) (string, error), name string) (int, error) {
	v, err := floatField(field, name)
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
		return 0, fmt.Errorf("%s is not an integer: %v", name, v)
	}
	return int(v), nil
}

func floatField(field func(string) (string, error), name string) (float64, error) {
	s, err := field(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s is not a number: %q", name, s)
	}
	return v, nil
}

// normalizeTrackID turns "3.0" into "3" so ids written by numeric tooling
// compare equal to the ids reviewers type.
func normalizeTrackID(s string) string {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil && v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return s
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
