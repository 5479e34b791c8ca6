package motorino

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Vulkan pipeline cache blobs start with a device-identifying header:
//
//	Offset  Size  Meaning
//	     0     4  header length in bytes, little-endian
//	     4     4  header version (1)
//	     8     4  vendor ID
//	    12     4  device ID
//	    16    16  pipelineCacheUUID
//
// A blob written by a different device or driver build must not be fed
// back to CreatePipelineCache.
const pipelineCacheHeaderSize = 16 + 16

const pipelineCacheHeaderVersionOne = 1

type pipelineCacheHeader struct {
	Length    uint32
	Version   uint32
	VendorID  uint32
	DeviceID  uint32
	CacheUUID uuid.UUID
}

func parsePipelineCacheHeader(data []byte) (pipelineCacheHeader, error) {
	var header pipelineCacheHeader
	if len(data) < pipelineCacheHeaderSize {
		return header, errors.Newf("cache blob is %d bytes, shorter than the %d-byte header", len(data), pipelineCacheHeaderSize)
	}

	reader := bytes.NewReader(data)
	for _, field := range []any{&header.Length, &header.Version, &header.VendorID, &header.DeviceID, &header.CacheUUID} {
		if err := binary.Read(reader, common.ByteOrder, field); err != nil {
			return header, errors.Wrap(err, "reading cache header")
		}
	}
	return header, nil
}

// validate reports why a cache header cannot be used with the device
// identified by the given properties, or nil if it can.
func (h pipelineCacheHeader) validate(vendorID, deviceID uint32, cacheUUID uuid.UUID) error {
	if h.Length == 0 {
		return errors.New("cache header reports zero length")
	}
	if h.Version != pipelineCacheHeaderVersionOne {
		return errors.Newf("unsupported cache header version 0x%x", h.Version)
	}
	if h.VendorID != vendorID {
		return errors.Newf("vendor ID mismatch: cache 0x%x, device 0x%x", h.VendorID, vendorID)
	}
	if h.DeviceID != deviceID {
		return errors.Newf("device ID mismatch: cache 0x%x, device 0x%x", h.DeviceID, deviceID)
	}
	if h.CacheUUID != cacheUUID {
		return errors.Newf("pipeline cache UUID mismatch: cache %s, device %s", h.CacheUUID, cacheUUID)
	}
	return nil
}

// loadPipelineCacheData reads the cache file and validates its header
// against the selected device. A missing file, or a blob written by some
// other device, yields nil data: the cache is created empty and the stale
// file removed so the next run repopulates it.
func (e *Engine) loadPipelineCacheData() []byte {
	data, err := os.ReadFile(e.cachePath)
	if err != nil {
		if !os.IsNotExist(err) {
			e.log.Warn("pipeline cache unreadable", "path", e.cachePath, "error", err)
		}
		return nil
	}

	header, err := parsePipelineCacheHeader(data)
	if err == nil {
		err = header.validate(e.gpuProperties.VendorID, e.gpuProperties.DeviceID, e.gpuProperties.PipelineCacheUUID)
	}
	if err != nil {
		e.log.Warn("discarding stale pipeline cache", "path", e.cachePath, "error", err)
		_ = os.Remove(e.cachePath)
		return nil
	}

	e.log.Info("pipeline cache loaded", "path", e.cachePath, "bytes", len(data))
	return data
}

// openPipelineCache creates the device cache object, primed with validated
// on-disk data when a cache path is configured. The second return reports
// whether caching is active at all.
func (e *Engine) openPipelineCache() (core1_0.PipelineCache, bool, error) {
	if e.cachePath == "" {
		return core1_0.PipelineCache{}, false, nil
	}

	cache, _, err := e.deviceDriver.CreatePipelineCache(nil, core1_0.PipelineCacheCreateInfo{
		InitialData: e.loadPipelineCacheData(),
	})
	if err != nil {
		return core1_0.PipelineCache{}, false, errors.Mark(errors.Wrap(err, "creating pipeline cache"), ErrShaderLoadFailed)
	}
	return cache, true, nil
}

// savePipelineCache writes the cache blob back to disk. Failures only cost
// the next run its warm start, so they are logged and ignored.
func (e *Engine) savePipelineCache(cache core1_0.PipelineCache) {
	data, _, err := e.deviceDriver.GetPipelineCacheData(cache)
	if err != nil {
		e.log.Warn("fetching pipeline cache data failed", "error", err)
		return
	}

	if err := os.WriteFile(e.cachePath, data, 0o644); err != nil {
		e.log.Warn("writing pipeline cache failed", "path", e.cachePath, "error", err)
		return
	}
	e.log.Info("pipeline cache saved", "path", e.cachePath, "bytes", len(data))
}
