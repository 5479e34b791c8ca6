package motorino

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
)

var testCacheUUID = uuid.MustParse("c944bd42-31ea-4df7-87ad-9f57b1a0d3c1")

func cacheBlob(t *testing.T, header pipelineCacheHeader) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	for _, field := range []any{header.Length, header.Version, header.VendorID, header.DeviceID, header.CacheUUID} {
		require.NoError(t, binary.Write(buf, common.ByteOrder, field))
	}
	return buf.Bytes()
}

func validHeader() pipelineCacheHeader {
	return pipelineCacheHeader{
		Length:    pipelineCacheHeaderSize,
		Version:   pipelineCacheHeaderVersionOne,
		VendorID:  0x10de,
		DeviceID:  0x2206,
		CacheUUID: testCacheUUID,
	}
}

func TestParsePipelineCacheHeaderRoundTrip(t *testing.T) {
	header := validHeader()

	parsed, err := parsePipelineCacheHeader(cacheBlob(t, header))
	require.NoError(t, err)
	require.Equal(t, header, parsed)
}

func TestParsePipelineCacheHeaderTooShort(t *testing.T) {
	_, err := parsePipelineCacheHeader(make([]byte, pipelineCacheHeaderSize-1))
	require.Error(t, err)
}

func TestValidateAcceptsMatchingDevice(t *testing.T) {
	require.NoError(t, validHeader().validate(0x10de, 0x2206, testCacheUUID))
}

func TestValidateRejectsMismatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*pipelineCacheHeader)
	}{
		{"zero length", func(h *pipelineCacheHeader) { h.Length = 0 }},
		{"unknown version", func(h *pipelineCacheHeader) { h.Version = 2 }},
		{"different vendor", func(h *pipelineCacheHeader) { h.VendorID = 0x8086 }},
		{"different device", func(h *pipelineCacheHeader) { h.DeviceID = 0xffff }},
		{"different cache uuid", func(h *pipelineCacheHeader) { h.CacheUUID = uuid.Nil }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			header := validHeader()
			test.mutate(&header)
			require.Error(t, header.validate(0x10de, 0x2206, testCacheUUID))
		})
	}
}
