package parallel

import (
	"bytes"
	"context"
	"fmt"
	"math"

	"github.com/SimonWaldherr/sddspage/internal/codec"
	"github.com/SimonWaldherr/sddspage/internal/iobuf"
	"github.com/SimonWaldherr/sddspage/internal/layout"
)

// Title is rank 0's per-page title buffer (spec §4.6 "Title broadcast per
// page"): the row count plus every parameter and array value, broadcast so
// all ranks reconstruct identical state before partitioning rows.
type Title struct {
	TotalRows  int64
	Parameters []codec.Value
	Arrays     []codec.ArrayValue
}

const int32MinParallel = int32(math.MinInt32)

// ReadTitle is rank 0's half of the title broadcast: read the row-count
// field (same escape rule as the serial engine, spec §4.5 step 3), then the
// parameters and arrays, directly off buf.
func ReadTitle(l *layout.Layout, buf *iobuf.Buffer, parser codec.FixedValueParser) (*Title, error) {
	c := codec.New(buf, l.DeclaredByteOrder)
	rows, err := readRowCountRaw(c, l)
	if err != nil {
		return nil, fmt.Errorf("parallel: read title row count: %w", err)
	}
	params, err := c.ReadParameters(l, parser)
	if err != nil {
		return nil, fmt.Errorf("parallel: read title parameters: %w", err)
	}
	arrays, err := c.ReadArrays(l)
	if err != nil {
		return nil, fmt.Errorf("parallel: read title arrays: %w", err)
	}
	return &Title{TotalRows: rows, Parameters: params, Arrays: arrays}, nil
}

func readRowCountRaw(c *codec.Codec, l *layout.Layout) (int64, error) {
	v, err := c.ReadScalar(layout.I32, l.DeclaredByteOrder)
	if err != nil {
		return 0, err
	}
	i32v := v.(int32)
	if i32v == int32MinParallel {
		v64, err := c.ReadScalar(layout.I64, l.DeclaredByteOrder)
		if err != nil {
			return 0, err
		}
		return v64.(int64), nil
	}
	return int64(i32v), nil
}

// Marshal packs a Title into bytes for Communicator.Broadcast, using the
// layout's own declared order so every rank decodes identically regardless
// of transport (in-process hub or gRPC).
func (t *Title) Marshal(l *layout.Layout) ([]byte, error) {
	var mem bytes.Buffer
	wb, err := iobuf.NewWriteBuffer(&mem, 0, false)
	if err != nil {
		return nil, err
	}
	c := codec.New(wb, l.DeclaredByteOrder)
	if err := c.WriteScalar(layout.I64, t.TotalRows); err != nil {
		return nil, err
	}
	if err := c.WriteParameters(l, t.Parameters); err != nil {
		return nil, err
	}
	if err := c.WriteArrays(l, t.Arrays); err != nil {
		return nil, err
	}
	if err := wb.Flush(); err != nil {
		return nil, err
	}
	return mem.Bytes(), nil
}

// UnmarshalTitle is the inverse of Marshal, used by every non-root rank
// after Broadcast delivers rank 0's title payload.
func UnmarshalTitle(l *layout.Layout, payload []byte, parser codec.FixedValueParser) (*Title, error) {
	rb, err := iobuf.NewReadBuffer(bytes.NewReader(payload), 0, false)
	if err != nil {
		return nil, err
	}
	c := codec.New(rb, l.DeclaredByteOrder)
	rowsV, err := c.ReadScalar(layout.I64, l.DeclaredByteOrder)
	if err != nil {
		return nil, err
	}
	params, err := c.ReadParameters(l, parser)
	if err != nil {
		return nil, err
	}
	arrays, err := c.ReadArrays(l)
	if err != nil {
		return nil, err
	}
	return &Title{TotalRows: rowsV.(int64), Parameters: params, Arrays: arrays}, nil
}

// BroadcastTitle is the full collective step: rank 0 marshals and
// broadcasts; every other rank unmarshals the delivered payload. Every
// rank, root included, ends up with an equal *Title (spec §4.6: "Ranks
// must reconstruct identical parameter/array state").
func BroadcastTitle(ctx context.Context, comm Communicator, l *layout.Layout, mine *Title, parser codec.FixedValueParser) (*Title, error) {
	var payload []byte
	if comm.Rank() == 0 {
		p, err := mine.Marshal(l)
		if err != nil {
			return nil, err
		}
		payload = p
	}
	delivered, err := comm.Broadcast(ctx, 0, payload)
	if err != nil {
		return nil, err
	}
	if comm.Rank() == 0 {
		return mine, nil
	}
	return UnmarshalTitle(l, delivered, parser)
}
