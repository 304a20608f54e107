package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/hupe1980/speakerid/blobstore"
	"github.com/hupe1980/speakerid/codec"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Snapshot file layout:
//
//	magic      [4]byte  "SVPS"
//	version    uint8    currently 1
//	compression uint8   see Compression
//	codecLen   uint8
//	codecName  [codecLen]byte
//	payloadLen uint32   big-endian, length of the (compressed) payload
//	payload    [payloadLen]byte
//	checksum   uint32   big-endian CRC32 (IEEE) of the payload
//
// The checksum covers the compressed payload, so corruption is detected
// before any decompressor or codec sees the bytes.

var snapshotMagic = [4]byte{'S', 'V', 'P', 'S'}

const snapshotVersion = 1

// ErrSnapshotCorrupt is returned when a snapshot fails structural or
// checksum validation.
var ErrSnapshotCorrupt = errors.New("snapshot corrupt")

// Compression selects the snapshot payload compression.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// CompressionByName returns a Compression by its stable name.
func CompressionByName(name string) (Compression, bool) {
	switch name {
	case "", "none":
		return CompressionNone, true
	case "zstd":
		return CompressionZstd, true
	case "lz4":
		return CompressionLZ4, true
	default:
		return CompressionNone, false
	}
}

// SnapshotOptions configures snapshot encoding.
type SnapshotOptions struct {
	// Codec serializes the voiceprint records. Defaults to codec.Default.
	Codec codec.Codec

	// Compression compresses the serialized payload. Defaults to none.
	Compression Compression
}

type snapshotFile struct {
	Voiceprints []Voiceprint `json:"voiceprints" msgpack:"voiceprints"`
}

// SaveSnapshot writes the full contents of s as a single blob.
//
// The blob is self-describing (codec and compression are recorded in the
// header) and protected by a CRC32 checksum.
func SaveSnapshot(ctx context.Context, bs blobstore.BlobStore, name string, s Store, opts SnapshotOptions) error {
	c := opts.Codec
	if c == nil {
		c = codec.Default
	}

	vps, err := s.All(ctx)
	if err != nil {
		return fmt.Errorf("store: snapshot read: %w", err)
	}

	payload, err := c.Marshal(snapshotFile{Voiceprints: vps})
	if err != nil {
		return fmt.Errorf("store: snapshot encode: %w", err)
	}

	payload, err = compress(payload, opts.Compression)
	if err != nil {
		return fmt.Errorf("store: snapshot compress: %w", err)
	}

	codecName := c.Name()
	if len(codecName) > 255 {
		return fmt.Errorf("store: codec name too long: %q", codecName)
	}

	var buf bytes.Buffer
	buf.Write(snapshotMagic[:])
	buf.WriteByte(snapshotVersion)
	buf.WriteByte(byte(opts.Compression))
	buf.WriteByte(byte(len(codecName)))
	buf.WriteString(codecName)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf.Write(lenBuf[:])
	buf.Write(payload)

	var sumBuf [4]byte
	binary.BigEndian.PutUint32(sumBuf[:], crc32.ChecksumIEEE(payload))
	buf.Write(sumBuf[:])

	if err := bs.Put(ctx, name, buf.Bytes()); err != nil {
		return fmt.Errorf("store: snapshot write: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot blob and atomically replaces the full
// contents of m with it.
func LoadSnapshot(ctx context.Context, bs blobstore.BlobStore, name string, m *MemoryStore) error {
	data, err := bs.Get(ctx, name)
	if err != nil {
		return err
	}

	vps, err := decodeSnapshot(data)
	if err != nil {
		return err
	}

	m.replaceAll(vps)
	return nil
}

func decodeSnapshot(data []byte) ([]Voiceprint, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != snapshotMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrSnapshotCorrupt)
	}

	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: truncated header", ErrSnapshotCorrupt)
	}
	version, compression, codecLen := header[0], Compression(header[1]), int(header[2])
	if version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, version)
	}

	codecName := make([]byte, codecLen)
	if _, err := io.ReadFull(r, codecName); err != nil {
		return nil, fmt.Errorf("%w: truncated codec name", ErrSnapshotCorrupt)
	}
	c, ok := codec.ByName(string(codecName))
	if !ok {
		return nil, fmt.Errorf("store: snapshot uses unknown codec %q", codecName)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated payload length", ErrSnapshotCorrupt)
	}
	payloadLen := binary.BigEndian.Uint32(lenBuf[:])

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: truncated payload", ErrSnapshotCorrupt)
	}

	var sumBuf [4]byte
	if _, err := io.ReadFull(r, sumBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: missing checksum", ErrSnapshotCorrupt)
	}
	if got, want := crc32.ChecksumIEEE(payload), binary.BigEndian.Uint32(sumBuf[:]); got != want {
		return nil, fmt.Errorf("%w: checksum mismatch (got %08x, want %08x)", ErrSnapshotCorrupt, got, want)
	}

	payload, err := decompress(payload, compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}

	var file snapshotFile
	if err := c.Unmarshal(payload, &file); err != nil {
		return nil, fmt.Errorf("%w: payload decode: %v", ErrSnapshotCorrupt, err)
	}
	return file.Voiceprints, nil
}

func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil

	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		defer func() { _ = enc.Close() }()
		return enc.EncodeAll(data, nil), nil

	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported compression: %v", c)
	}
}

func decompress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil

	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return dec.DecodeAll(data, nil)

	case CompressionLZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))

	default:
		return nil, fmt.Errorf("unsupported compression: %v", c)
	}
}
