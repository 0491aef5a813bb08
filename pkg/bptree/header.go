package bptree

import (
	"encoding/binary"

	"bptreeidx/pkg/storage"
)

// fileHeader is the 24-byte header page: free_head, root,
// and page_count, each an 8-byte little-endian field. The rest of the
// header page is unused.
const (
	headerFreeHeadOff  = 0
	headerRootOff      = 8
	headerPageCountOff = 16
	headerSize         = 24
)

type fileHeader struct {
	FreeHead  storage.Offset
	Root      storage.Offset
	PageCount uint64
}

func marshalHeader(h fileHeader) []byte {
	buf := make([]byte, storage.PageSize)
	binary.LittleEndian.PutUint64(buf[headerFreeHeadOff:headerFreeHeadOff+8], uint64(int64(h.FreeHead)))
	binary.LittleEndian.PutUint64(buf[headerRootOff:headerRootOff+8], uint64(int64(h.Root)))
	binary.LittleEndian.PutUint64(buf[headerPageCountOff:headerPageCountOff+8], h.PageCount)
	return buf
}

func unmarshalHeader(buf []byte) fileHeader {
	return fileHeader{
		FreeHead:  storage.Offset(int64(binary.LittleEndian.Uint64(buf[headerFreeHeadOff : headerFreeHeadOff+8]))),
		Root:      storage.Offset(int64(binary.LittleEndian.Uint64(buf[headerRootOff : headerRootOff+8]))),
		PageCount: binary.LittleEndian.Uint64(buf[headerPageCountOff : headerPageCountOff+8]),
	}
}
