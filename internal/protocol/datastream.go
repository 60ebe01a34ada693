package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
)

// DataStream is a little-endian reader/writer over a byte buffer. The packet
// body codecs in this package go through it; the RPC codec in internal/rpc
// uses its own bounds-checked reader.
type DataStream struct {
	buffer *bytes.Buffer
	order  binary.ByteOrder
}

func NewDataStream(data []byte) *DataStream {
	return &DataStream{
		buffer: bytes.NewBuffer(data),
		order:  binary.LittleEndian,
	}
}

func NewDataStreamWriter() *DataStream {
	return &DataStream{
		buffer: new(bytes.Buffer),
		order:  binary.LittleEndian,
	}
}

func (ds *DataStream) Len() int {
	return ds.buffer.Len()
}

func (ds *DataStream) Bytes() []byte {
	return ds.buffer.Bytes()
}

func (ds *DataStream) ReadUint8() (uint8, error) {
	var val uint8
	err := binary.Read(ds.buffer, ds.order, &val)
	return val, err
}

func (ds *DataStream) ReadUint16() (uint16, error) {
	var val uint16
	err := binary.Read(ds.buffer, ds.order, &val)
	return val, err
}

func (ds *DataStream) ReadUint32() (uint32, error) {
	var val uint32
	err := binary.Read(ds.buffer, ds.order, &val)
	return val, err
}

func (ds *DataStream) ReadInt64() (int64, error) {
	var val int64
	err := binary.Read(ds.buffer, ds.order, &val)
	return val, err
}

func (ds *DataStream) ReadFloat32() (float32, error) {
	var val float32
	err := binary.Read(ds.buffer, ds.order, &val)
	return val, err
}

func (ds *DataStream) ReadFloat64() (float64, error) {
	var val float64
	err := binary.Read(ds.buffer, ds.order, &val)
	return val, err
}

func (ds *DataStream) ReadBytes(n int) ([]byte, error) {
	data := make([]byte, n)
	_, err := io.ReadFull(ds.buffer, data)
	return data, err
}

func (ds *DataStream) WriteUint8(val uint8) error {
	return binary.Write(ds.buffer, ds.order, val)
}

func (ds *DataStream) WriteUint16(val uint16) error {
	return binary.Write(ds.buffer, ds.order, val)
}

func (ds *DataStream) WriteUint32(val uint32) error {
	return binary.Write(ds.buffer, ds.order, val)
}

func (ds *DataStream) WriteInt64(val int64) error {
	return binary.Write(ds.buffer, ds.order, val)
}

func (ds *DataStream) WriteFloat32(val float32) error {
	return binary.Write(ds.buffer, ds.order, val)
}

func (ds *DataStream) WriteFloat64(val float64) error {
	return binary.Write(ds.buffer, ds.order, val)
}

func (ds *DataStream) WriteBytes(data []byte) error {
	_, err := ds.buffer.Write(data)
	return err
}
