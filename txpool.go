package packstore

import (
	"fmt"

	"github.com/packstore/packstore/codec"
	"github.com/puzpuzpuz/xsync/v3"
)

// txContext is the per-transaction codec state. A context is used by one
// goroutine at a time and returned to the pool when the transaction ends.
type txContext struct {
	enc *codec.Encoder
	dec *codec.Decoder

	keyEncoding codec.KeyEncoding
	comp        codec.Compressor
}

// txPool keeps spare transaction contexts so that short operations do not
// allocate encoder state. When the pool is empty a new context is created,
// when it is full a returned context is dropped.
type txPool struct {
	spare *xsync.MPMCQueueOf[*txContext]
	newFn func() *txContext
}

func newTxPool(size int, keyEncoding codec.KeyEncoding, comp codec.Compressor) *txPool {
	p := &txPool{
		newFn: func() *txContext {
			return &txContext{
				enc:         codec.NewEncoder(),
				dec:         codec.NewDecoder(),
				keyEncoding: keyEncoding,
				comp:        comp,
			}
		},
	}

	if size > 0 {
		p.spare = xsync.NewMPMCQueueOf[*txContext](size)
		for i := 0; i < size; i++ {
			p.spare.TryEnqueue(p.newFn())
		}
	}
	return p
}

func (p *txPool) get() *txContext {
	if p.spare != nil {
		if c, ok := p.spare.TryDequeue(); ok {
			return c
		}
	}
	return p.newFn()
}

func (p *txPool) put(c *txContext) {
	if p.spare != nil {
		p.spare.TryEnqueue(c)
	}
}

// encodeKey returns a freshly allocated encoding of key, engines may retain it.
func (c *txContext) encodeKey(key codec.Value) ([]byte, error) {
	if c.keyEncoding != codec.KeyMsgpack {
		return codec.EncodeKey(c.keyEncoding, key)
	}

	data, err := c.enc.Encode(key)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

func (c *txContext) decodeKey(data []byte) (codec.Value, error) {
	if c.keyEncoding != codec.KeyMsgpack {
		return codec.DecodeKey(c.keyEncoding, data)
	}
	return c.dec.Decode(data)
}

// encodeValue returns the compressed encoding of v.
func (c *txContext) encodeValue(v codec.Value) ([]byte, error) {
	data, err := c.enc.Encode(v)
	if err != nil {
		return nil, err
	}
	return c.comp.Compress(data)
}

// decodeValue reverses encodeValue. Absent or empty data yields a new empty
// list.
func (c *txContext) decodeValue(data []byte) (codec.Value, error) {
	raw, err := c.comp.Decompress(data)
	if err != nil {
		return codec.Value{}, err
	}
	if len(raw) == 0 {
		return codec.EmptyList(), nil
	}

	v, err := c.dec.Decode(raw)
	if err != nil {
		return codec.Value{}, fmt.Errorf("%w (%d stored bytes)", err, len(data))
	}
	return v, nil
}
