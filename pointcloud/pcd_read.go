package pointcloud

import (
	"context"
	"encoding/binary"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Attributes holds flat per-point attribute streams. Positions and Normals are
// packed three floats per point; Colors are packed three normalized [0,1]
// channels per point. A stream a file does not declare stays empty.
type Attributes struct {
	Positions []float32
	Normals   []float32
	Colors    []float32
}

// Len returns the number of points in the stream.
func (a *Attributes) Len() int {
	return len(a.Positions) / 3
}

// HasNormals reports whether the stream carries normals.
func (a *Attributes) HasNormals() bool {
	return len(a.Normals) > 0
}

// HasColors reports whether the stream carries colors.
func (a *Attributes) HasColors() bool {
	return len(a.Colors) > 0
}

// ToCloud materializes the attribute stream into a PointCloud.
func (a *Attributes) ToCloud() (PointCloud, error) {
	n := a.Len()
	if a.HasNormals() && len(a.Normals) != n*3 {
		return nil, errors.Errorf("normal stream has %d values for %d points", len(a.Normals), n)
	}
	if a.HasColors() && len(a.Colors) != n*3 {
		return nil, errors.Errorf("color stream has %d values for %d points", len(a.Colors), n)
	}
	cloud := NewWithPrealloc(n)
	for i := 0; i < n; i++ {
		pos := r3.Vector{
			X: float64(a.Positions[3*i]),
			Y: float64(a.Positions[3*i+1]),
			Z: float64(a.Positions[3*i+2]),
		}
		var d Data
		if a.HasColors() || a.HasNormals() {
			d = NewBasicData()
			if a.HasColors() {
				d.SetColor(color.NRGBA{
					R: uint8(a.Colors[3*i]*255 + 0.5),
					G: uint8(a.Colors[3*i+1]*255 + 0.5),
					B: uint8(a.Colors[3*i+2]*255 + 0.5),
					A: 255,
				})
			}
			if a.HasNormals() {
				d.SetNormal(r3.Vector{
					X: float64(a.Normals[3*i]),
					Y: float64(a.Normals[3*i+1]),
					Z: float64(a.Normals[3*i+2]),
				})
			}
		}
		if err := cloud.Set(pos, d); err != nil {
			return nil, err
		}
	}
	return cloud, nil
}

// pcdRecord is one decoded payload row. Position is always present; normal and
// color only when the header declares them.
type pcdRecord struct {
	pos       [3]float32
	hasNormal bool
	normal    [3]float32
	hasColor  bool
	rgb       [3]float32
}

// pcdFieldReader resolves the header's field set once so the per-record loop
// does no map lookups.
type pcdFieldReader struct {
	posOff    [3]int
	hasNormal bool
	normalOff [3]int
	colorOff  int
	// colorMode is one of "", "rgb", "intensity"
	colorMode string
}

func newPCDFieldReader(header *PCDHeader) (*pcdFieldReader, error) {
	if !header.HasPosition() {
		return nil, errors.New("pcd header does not declare x, y and z fields")
	}
	r := &pcdFieldReader{}
	for i, f := range []string{"x", "y", "z"} {
		r.posOff[i], _ = header.FieldOffset(f)
	}
	if _, ok := header.FieldOffset("normal_x"); ok {
		r.hasNormal = true
		for i, f := range []string{"normal_x", "normal_y", "normal_z"} {
			off, ok := header.FieldOffset(f)
			if !ok {
				return nil, errors.Errorf("pcd header declares normal_x but not %s", f)
			}
			r.normalOff[i] = off
		}
	}
	if off, ok := header.FieldOffset("rgb"); ok {
		r.colorMode = "rgb"
		r.colorOff = off
	} else if off, ok := header.FieldOffset("intensity"); ok {
		r.colorMode = "intensity"
		r.colorOff = off
	}

	if header.Data == PCDBinary {
		if err := r.checkStride(header); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// checkStride rejects headers whose declared sizes leave a used field reading
// past the end of its record.
func (r *pcdFieldReader) checkStride(header *PCDHeader) error {
	stride := header.RecordStride()
	needs := make(map[string]int)
	for i, f := range []string{"x", "y", "z"} {
		needs[f] = r.posOff[i] + 4
	}
	if r.hasNormal {
		for i, f := range []string{"normal_x", "normal_y", "normal_z"} {
			needs[f] = r.normalOff[i] + 4
		}
	}
	switch r.colorMode {
	case "rgb":
		needs["rgb"] = r.colorOff + 4
	case "intensity":
		needs["intensity"] = r.colorOff + 1
	}
	for f, need := range needs {
		if need > stride {
			return errors.Errorf("field %s extends past the %d byte record stride", f, stride)
		}
	}
	return nil
}

// unpackRGB splits a packed rgb word into normalized channels. The low byte is
// blue, then green, then red.
func unpackRGB(packed uint32) [3]float32 {
	return [3]float32{
		float32(0xFF&(packed>>16)) / 255.,
		float32(0xFF&(packed>>8)) / 255.,
		float32(0xFF&packed) / 255.,
	}
}

func (r *pcdFieldReader) readBinary(record []byte, order binary.ByteOrder) pcdRecord {
	var rec pcdRecord
	for i, off := range r.posOff {
		rec.pos[i] = math.Float32frombits(order.Uint32(record[off:]))
	}
	if r.hasNormal {
		rec.hasNormal = true
		for i, off := range r.normalOff {
			rec.normal[i] = math.Float32frombits(order.Uint32(record[off:]))
		}
	}
	switch r.colorMode {
	case "rgb":
		rec.hasColor = true
		rec.rgb = unpackRGB(order.Uint32(record[r.colorOff:]))
	case "intensity":
		rec.hasColor = true
		v := float32(record[r.colorOff]) / 255.
		rec.rgb = [3]float32{v, v, v}
	}
	return rec
}

func (r *pcdFieldReader) readAscii(tokens []string, index int) (pcdRecord, error) {
	var rec pcdRecord
	parse := func(off int) (float32, error) {
		if off >= len(tokens) {
			return 0, errors.Errorf("point %d has %d columns, expected at least %d", index, len(tokens), off+1)
		}
		v, err := strconv.ParseFloat(tokens[off], 32)
		if err != nil {
			return 0, errors.Errorf("invalid point %d field %q: %s", index, tokens[off], err)
		}
		return float32(v), nil
	}

	var err error
	for i, off := range r.posOff {
		if rec.pos[i], err = parse(off); err != nil {
			return rec, err
		}
	}
	if r.hasNormal {
		rec.hasNormal = true
		for i, off := range r.normalOff {
			if rec.normal[i], err = parse(off); err != nil {
				return rec, err
			}
		}
	}
	switch r.colorMode {
	case "rgb":
		// the token is the decimal rendering of the float32 whose bit
		// pattern carries the packed color
		f, err := parse(r.colorOff)
		if err != nil {
			return rec, err
		}
		rec.hasColor = true
		rec.rgb = unpackRGB(math.Float32bits(f))
	case "intensity":
		v, err := parse(r.colorOff)
		if err != nil {
			return rec, err
		}
		rec.hasColor = true
		rec.rgb = [3]float32{v / 255., v / 255., v / 255.}
	}
	return rec, nil
}

// ctxCheckBatchSize is how many records are decoded between context checks.
const ctxCheckBatchSize = 4096

// walkPCD decodes every payload record and hands it to fn. The context is
// consulted periodically so a long decode can be abandoned.
func walkPCD(ctx context.Context, header *PCDHeader, payload []byte, order binary.ByteOrder, fn func(rec pcdRecord) error) error {
	if order == nil {
		order = binary.LittleEndian
	}
	reader, err := newPCDFieldReader(header)
	if err != nil {
		return err
	}

	switch header.Data {
	case PCDBinary:
		stride := header.RecordStride()
		if need := header.Points * stride; len(payload) < need {
			return errors.Errorf("truncated pcd payload: have %d bytes, need %d", len(payload), need)
		}
		for i := 0; i < header.Points; i++ {
			if i%ctxCheckBatchSize == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			if err := fn(reader.readBinary(payload[i*stride:(i+1)*stride], order)); err != nil {
				return err
			}
		}
	case PCDAscii:
		lines := strings.Split(string(payload), "\n")
		n := 0
		for i := 0; n < header.Points; i++ {
			if i >= len(lines) {
				return errors.Errorf("truncated pcd payload: have %d rows, need %d", n, header.Points)
			}
			if n%ctxCheckBatchSize == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			line := strings.TrimSpace(lines[i])
			if line == "" {
				continue
			}
			rec, err := reader.readAscii(strings.Fields(line), n)
			if err != nil {
				return err
			}
			if err := fn(rec); err != nil {
				return err
			}
			n++
		}
	case PCDCompressed:
		return ErrUnsupportedEncoding
	default:
		return errors.Errorf("unsupported pcd data type %v", header.Data)
	}
	return nil
}

// DecodePCD parses a whole pcd buffer into a single attribute stream.
func DecodePCD(raw []byte) (*PCDHeader, *Attributes, error) {
	header, err := ParsePCDHeader(raw)
	if err != nil {
		return nil, nil, err
	}
	attrs := &Attributes{Positions: make([]float32, 0, header.Points*3)}
	err = walkPCD(context.Background(), header, raw[header.PayloadOffset():], nil, func(rec pcdRecord) error {
		attrs.Positions = append(attrs.Positions, rec.pos[0], rec.pos[1], rec.pos[2])
		if rec.hasNormal {
			attrs.Normals = append(attrs.Normals, rec.normal[0], rec.normal[1], rec.normal[2])
		}
		if rec.hasColor {
			attrs.Colors = append(attrs.Colors, rec.rgb[0], rec.rgb[1], rec.rgb[2])
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return header, attrs, nil
}

// ReadPCD reads a pcd file into a PointCloud.
func ReadPCD(in io.Reader) (PointCloud, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, err
	}
	return ReadPCDBytes(raw)
}

// ReadPCDBytes reads a pcd buffer into a PointCloud.
func ReadPCDBytes(raw []byte) (PointCloud, error) {
	_, attrs, err := DecodePCD(raw)
	if err != nil {
		return nil, err
	}
	return attrs.ToCloud()
}
