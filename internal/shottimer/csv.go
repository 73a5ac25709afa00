package shottimer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

var (
	StageHeader       = []string{"idx", "elapsed_ms", "delta_ms", "raw_ts", "calibrated_ts", "rms"}
	ParticipantHeader = []string{"pidx", "courseId", "courseName", "stageId", "elapsed_ms", "delta_ms", "raw_ts", "calibrated_ts", "rms"}

	ErrBadHeader = errors.New("unexpected csv header")
)

// WriteStageCSV exports the shots of one stage.
func WriteStageCSV(w io.Writer, shots []ShotRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(StageHeader); err != nil {
		return err
	}
	for _, s := range shots {
		row := append([]string{strconv.Itoa(s.Index)}, timing(s)...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteParticipantCSV exports every archived shot of a participant.
func WriteParticipantCSV(w io.Writer, shots []ArchivedShot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ParticipantHeader); err != nil {
		return err
	}
	for _, s := range shots {
		row := append([]string{strconv.Itoa(s.ParticipantIndex), s.CourseID, s.CourseName, s.StageID}, timing(s.ShotRecord)...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func timing(s ShotRecord) []string {
	return []string{
		formatMs(s.Elapsed),
		formatMs(s.Delta),
		formatMs(s.Raw),
		formatMs(s.At),
		strconv.FormatFloat(s.RMS, 'f', 4, 64),
	}
}

func formatMs(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
}

func parseMs(s string) (time.Duration, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(math.Round(v * float64(time.Millisecond))), nil
}

// ParseShotsCSV reads a stage export back into shot records. The advisory
// flags are not part of the export and come back unset.
func ParseShotsCSV(r io.Reader) ([]ShotRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(StageHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, h := range StageHeader {
		if header[i] != h {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, header[i], h)
		}
	}

	var shots []ShotRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return shots, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		var s ShotRecord
		if s.Index, err = strconv.Atoi(row[0]); err != nil {
			return nil, fmt.Errorf("line %d idx: %w", line, err)
		}
		for i, dst := range []*time.Duration{&s.Elapsed, &s.Delta, &s.Raw, &s.At} {
			if *dst, err = parseMs(row[i+1]); err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, StageHeader[i+1], err)
			}
		}
		if s.RMS, err = strconv.ParseFloat(row[5], 64); err != nil {
			return nil, fmt.Errorf("line %d rms: %w", line, err)
		}
		shots = append(shots, s)
	}
}
