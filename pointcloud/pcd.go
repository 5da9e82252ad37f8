package pointcloud

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// PCDType is the format of a pcd file.
type PCDType int

const (
	// PCDAscii ascii format for pcd.
	PCDAscii PCDType = 0
	// PCDBinary binary format for pcd.
	PCDBinary PCDType = 1
	// PCDCompressed compressed binary format for pcd.
	PCDCompressed PCDType = 2
)

// ErrUnsupportedEncoding is returned for binary_compressed files, which this
// package does not decode.
var ErrUnsupportedEncoding = errors.New("unsupported pcd encoding binary_compressed")

const pcdCommentChar = "#"

// PCDHeader is the parsed metadata block preceding a pcd payload. Offsets and
// stride are derived from the declared fields in declaration order.
type PCDHeader struct {
	Version   string
	Fields    []string
	Sizes     []int
	Types     []string
	Counts    []int
	Width     int
	Height    int
	Viewpoint string
	Points    int
	Data      PCDType

	offsets       map[string]int
	stride        int
	payloadOffset int
}

// FieldOffset returns the byte offset (binary) or column index (ascii) of the
// named field within one record.
func (h *PCDHeader) FieldOffset(name string) (int, bool) {
	off, ok := h.offsets[name]
	return off, ok
}

// RecordStride is the total byte width of one binary record.
func (h *PCDHeader) RecordStride() int {
	return h.stride
}

// PayloadOffset is the byte offset within the raw buffer where the payload
// begins, immediately after the DATA line.
func (h *PCDHeader) PayloadOffset() int {
	return h.payloadOffset
}

// HasPosition reports whether the header declares all three position fields.
func (h *PCDHeader) HasPosition() bool {
	for _, f := range []string{"x", "y", "z"} {
		if _, ok := h.offsets[f]; !ok {
			return false
		}
	}
	return true
}

func parseIntTokens(key string, tokens []string) ([]int, error) {
	out := make([]int, len(tokens))
	for i, token := range tokens {
		v, err := strconv.Atoi(token)
		if err != nil {
			return nil, errors.Errorf("invalid %s field %q: %s", key, token, err)
		}
		out[i] = v
	}
	return out, nil
}

// ParsePCDHeader parses the header block of a pcd file from the raw buffer. The
// scan stops at the first DATA line; the rest of the buffer is payload. Keys are
// matched case-insensitively and comment lines are skipped.
func ParsePCDHeader(raw []byte) (*PCDHeader, error) {
	header := &PCDHeader{Width: -1, Height: -1, Points: -1, Data: -1}

	pos := 0
	for pos < len(raw) {
		end := pos
		for end < len(raw) && raw[end] != '\n' {
			end++
		}
		line := string(raw[pos:end])
		lineEnd := end
		if lineEnd < len(raw) {
			lineEnd++ // consume the newline
		}
		pos = lineEnd

		if i := strings.Index(line, pcdCommentChar); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		tokens := strings.Fields(line)
		key := strings.ToUpper(tokens[0])
		value := strings.TrimSpace(strings.TrimPrefix(line, tokens[0]))
		tokens = tokens[1:]

		var err error
		switch key {
		case "VERSION":
			header.Version = value
		case "FIELDS":
			header.Fields = tokens
		case "SIZE":
			if header.Sizes, err = parseIntTokens(key, tokens); err != nil {
				return nil, err
			}
		case "TYPE":
			header.Types = tokens
		case "COUNT":
			if header.Counts, err = parseIntTokens(key, tokens); err != nil {
				return nil, err
			}
		case "WIDTH":
			if header.Width, err = strconv.Atoi(value); err != nil {
				return nil, errors.Errorf("invalid WIDTH field %q: %s", value, err)
			}
		case "HEIGHT":
			if header.Height, err = strconv.Atoi(value); err != nil {
				return nil, errors.Errorf("invalid HEIGHT field %q: %s", value, err)
			}
		case "VIEWPOINT":
			header.Viewpoint = value
		case "POINTS":
			if header.Points, err = strconv.Atoi(value); err != nil {
				return nil, errors.Errorf("invalid POINTS field %q: %s", value, err)
			}
		case "DATA":
			switch strings.ToLower(value) {
			case "ascii":
				header.Data = PCDAscii
			case "binary":
				header.Data = PCDBinary
			case "binary_compressed", "binary-compressed":
				return nil, ErrUnsupportedEncoding
			default:
				return nil, errors.Errorf("unsupported pcd data type %q", value)
			}
			header.payloadOffset = lineEnd
			return header, finishPCDHeader(header)
		default:
			// unknown keys are tolerated, matching pcl's own readers
		}
	}
	return nil, errors.New("pcd header missing DATA line")
}

// finishPCDHeader validates the declared fields and derives counts, point
// count, offsets and stride.
func finishPCDHeader(header *PCDHeader) error {
	if len(header.Fields) == 0 {
		return errors.New("pcd header missing FIELDS line")
	}
	if header.Data == PCDBinary && len(header.Sizes) != len(header.Fields) {
		return errors.Errorf("SIZE line has %d entries for %d fields", len(header.Sizes), len(header.Fields))
	}
	if header.Counts == nil {
		header.Counts = make([]int, len(header.Fields))
		for i := range header.Counts {
			header.Counts[i] = 1
		}
	} else if len(header.Counts) != len(header.Fields) {
		return errors.Errorf("COUNT line has %d entries for %d fields", len(header.Counts), len(header.Fields))
	}

	if header.Points < 0 {
		if header.Width < 0 || header.Height < 0 {
			return errors.New("pcd header has no POINTS line and no WIDTH/HEIGHT to derive it from")
		}
		header.Points = header.Width * header.Height
	} else if header.Width >= 0 && header.Height >= 0 && header.Points != header.Width*header.Height {
		return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", header.Points, header.Width*header.Height)
	}

	header.offsets = make(map[string]int, len(header.Fields))
	switch header.Data {
	case PCDBinary:
		offset := 0
		for i, field := range header.Fields {
			header.offsets[field] = offset
			offset += header.Sizes[i] * header.Counts[i]
		}
		header.stride = offset
	case PCDAscii:
		for i, field := range header.Fields {
			header.offsets[field] = i
		}
	case PCDCompressed:
		return ErrUnsupportedEncoding
	}
	return nil
}
