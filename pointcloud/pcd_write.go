package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
)

// WriteToPCDFile writes the point cloud out to a pcd file.
func WriteToPCDFile(cloud PointCloud, fn string, outputType PCDType) (err error) {
	//nolint:gosec
	f, err := os.OpenFile(fn, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return ToPCD(cloud, f, outputType)
}

func packPCDColor(d Data) uint32 {
	if d == nil || !d.HasColor() {
		return 0xFFFFFF
	}
	r, g, b := d.RGB255()
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

func formatPCDFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

// ToPCD writes the point cloud out as a pcd file. Positions always come first;
// normals and a packed rgb column follow when the cloud carries them.
func ToPCD(cloud PointCloud, out io.Writer, outputType PCDType) error {
	if outputType == PCDCompressed {
		return ErrUnsupportedEncoding
	}

	meta := cloud.MetaData()
	hasNormal := cloudHasNormal(cloud)

	fields := "x y z"
	sizes := "4 4 4"
	types := "F F F"
	counts := "1 1 1"
	if hasNormal {
		fields += " normal_x normal_y normal_z"
		sizes += " 4 4 4"
		types += " F F F"
		counts += " 1 1 1"
	}
	if meta.HasColor {
		fields += " rgb"
		sizes += " 4"
		types += " F"
		counts += " 1"
	}

	w := bufio.NewWriter(out)
	_, err := fmt.Fprintf(w, "VERSION .7\n"+
		"FIELDS %s\n"+
		"SIZE %s\n"+
		"TYPE %s\n"+
		"COUNT %s\n"+
		"WIDTH %d\n"+
		"HEIGHT %d\n"+
		"VIEWPOINT 0 0 0 1 0 0 0\n"+
		"POINTS %d\n",
		fields, sizes, types, counts, cloud.Size(), 1, cloud.Size())
	if err != nil {
		return err
	}
	switch outputType {
	case PCDBinary:
		_, err = fmt.Fprintf(w, "DATA binary\n")
	case PCDAscii:
		_, err = fmt.Fprintf(w, "DATA ascii\n")
	}
	if err != nil {
		return err
	}
	if err := writePCDData(cloud, w, outputType, hasNormal, meta.HasColor); err != nil {
		return err
	}
	return w.Flush()
}

func cloudHasNormal(cloud PointCloud) bool {
	has := false
	cloud.Iterate(func(p r3.Vector, d Data) bool {
		if d != nil && d.HasNormal() {
			has = true
			return false
		}
		return true
	})
	return has
}

func writePCDData(cloud PointCloud, out io.Writer, pcdtype PCDType, hasNormal, hasColor bool) error {
	var outerr error
	cloud.Iterate(func(pos r3.Vector, d Data) bool {
		values := []float32{float32(pos.X), float32(pos.Y), float32(pos.Z)}
		if hasNormal {
			var n r3.Vector
			if d != nil && d.HasNormal() {
				n = d.Normal()
			}
			values = append(values, float32(n.X), float32(n.Y), float32(n.Z))
		}
		if hasColor {
			// rgb rides in a float column; the packed word is the float's
			// bit pattern
			values = append(values, math.Float32frombits(packPCDColor(d)))
		}

		var err error
		switch pcdtype {
		case PCDBinary:
			buf := make([]byte, 4*len(values))
			for i, v := range values {
				binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
			}
			_, err = out.Write(buf)
		case PCDAscii:
			for i, v := range values {
				if i > 0 {
					if _, err = fmt.Fprint(out, " "); err != nil {
						break
					}
				}
				if _, err = fmt.Fprint(out, formatPCDFloat(v)); err != nil {
					break
				}
			}
			if err == nil {
				_, err = fmt.Fprint(out, "\n")
			}
		}
		outerr = err
		return err == nil
	})
	return outerr
}
