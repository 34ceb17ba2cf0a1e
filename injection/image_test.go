package injection

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testImageBase = 0x10000000

// buildTestImage assembles a minimal 64-bit module image: DOS stub, PE
// headers, one .text section whose first byte is a ret.
func buildTestImage(entryRVA uint32) []byte {
	buf := make([]byte, 0x400)

	copy(buf, "MZ")
	binary.LittleEndian.PutUint32(buf[0x3C:], 0x80)
	copy(buf[0x80:], "PE\x00\x00")

	fh := buf[0x84:]
	binary.LittleEndian.PutUint16(fh[0:], 0x8664) // machine: amd64
	binary.LittleEndian.PutUint16(fh[2:], 1)      // one section
	binary.LittleEndian.PutUint16(fh[16:], 240)   // size of optional header
	binary.LittleEndian.PutUint16(fh[18:], 0x2022)

	oh := buf[0x98:]
	binary.LittleEndian.PutUint16(oh[0:], 0x20B) // PE32+
	binary.LittleEndian.PutUint32(oh[16:], entryRVA)
	binary.LittleEndian.PutUint64(oh[24:], testImageBase)
	binary.LittleEndian.PutUint32(oh[32:], 0x1000) // section alignment
	binary.LittleEndian.PutUint32(oh[36:], 0x200)  // file alignment
	binary.LittleEndian.PutUint32(oh[56:], 0x2000) // size of image
	binary.LittleEndian.PutUint32(oh[60:], 0x200)  // size of headers
	binary.LittleEndian.PutUint16(oh[68:], 2)      // subsystem
	binary.LittleEndian.PutUint32(oh[108:], 16)    // data directory count

	sh := buf[0x188:]
	copy(sh, ".text")
	binary.LittleEndian.PutUint32(sh[8:], 0x200)       // virtual size
	binary.LittleEndian.PutUint32(sh[12:], 0x1000)     // virtual address
	binary.LittleEndian.PutUint32(sh[16:], 0x200)      // raw size
	binary.LittleEndian.PutUint32(sh[20:], 0x200)      // raw offset
	binary.LittleEndian.PutUint32(sh[36:], 0x60000020) // code, exec, read

	buf[0x200] = 0xC3
	return buf
}

func TestParseImage(t *testing.T) {
	img, err := parseImage(buildTestImage(0x1000))
	require.NoError(t, err)

	assert.True(t, img.is64)
	assert.Equal(t, uint64(testImageBase), img.preferredBase)
	assert.Equal(t, uint32(0x2000), img.sizeOfImage)
	assert.Equal(t, uint32(0x1000), img.entryRVA)
	require.Len(t, img.virt, 0x2000)

	// headers copied to the front, section contents at its RVA
	assert.Equal(t, byte('M'), img.virt[0])
	assert.Equal(t, byte(0xC3), img.virt[0x1000])
}

func TestParseImage_Garbage(t *testing.T) {
	_, err := parseImage([]byte("not a module"))
	assert.Error(t, err)

	_, err = parseImage(nil)
	assert.Error(t, err)
}

func TestRelocate_PreferredBaseIsNoop(t *testing.T) {
	img, err := parseImage(buildTestImage(0x1000))
	require.NoError(t, err)

	before := append([]byte(nil), img.virt...)
	require.NoError(t, img.relocate(uintptr(testImageBase)))
	assert.Equal(t, before, img.virt)
}

func TestRelocate_WithoutTableRejectsRebase(t *testing.T) {
	img, err := parseImage(buildTestImage(0x1000))
	require.NoError(t, err)

	err = img.relocate(uintptr(testImageBase) + 0x10000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no relocation table")
}

func TestRelocate_AppliesDelta(t *testing.T) {
	img := &mappedImage{
		virt:          make([]byte, 0x200),
		is64:          true,
		preferredBase: testImageBase,
		relocDir:      dataDir{rva: 0x100, size: 14},
	}

	// one block covering rva 0: a DIR64 slot at 0x20, a HIGHLOW slot at
	// 0x40, and an ABSOLUTE pad
	binary.LittleEndian.PutUint32(img.virt[0x100:], 0)
	binary.LittleEndian.PutUint32(img.virt[0x104:], 14)
	binary.LittleEndian.PutUint16(img.virt[0x108:], relDir64<<12|0x20)
	binary.LittleEndian.PutUint16(img.virt[0x10A:], relHighLow<<12|0x40)
	binary.LittleEndian.PutUint16(img.virt[0x10C:], relAbsolute<<12)

	binary.LittleEndian.PutUint64(img.virt[0x20:], testImageBase+0x123)
	binary.LittleEndian.PutUint32(img.virt[0x40:], testImageBase+0x456)

	require.NoError(t, img.relocate(uintptr(testImageBase)+0x1000000))

	assert.Equal(t, uint64(testImageBase+0x1000123),
		binary.LittleEndian.Uint64(img.virt[0x20:]))
	assert.Equal(t, uint32(testImageBase+0x1000456),
		binary.LittleEndian.Uint32(img.virt[0x40:]))
}

func TestRelocate_BlockAtImageStart(t *testing.T) {
	img := &mappedImage{
		virt:          make([]byte, 0x2000),
		is64:          true,
		preferredBase: testImageBase,
		relocDir:      dataDir{rva: 0x1800, size: 24},
	}

	// first block covers the image's first page, second block the next
	binary.LittleEndian.PutUint32(img.virt[0x1800:], 0)
	binary.LittleEndian.PutUint32(img.virt[0x1804:], 12)
	binary.LittleEndian.PutUint16(img.virt[0x1808:], relDir64<<12|0x30)
	binary.LittleEndian.PutUint16(img.virt[0x180A:], relAbsolute<<12)
	binary.LittleEndian.PutUint32(img.virt[0x180C:], 0x1000)
	binary.LittleEndian.PutUint32(img.virt[0x1810:], 12)
	binary.LittleEndian.PutUint16(img.virt[0x1814:], relDir64<<12|0x10)
	binary.LittleEndian.PutUint16(img.virt[0x1816:], relAbsolute<<12)

	binary.LittleEndian.PutUint64(img.virt[0x30:], testImageBase+0x500)
	binary.LittleEndian.PutUint64(img.virt[0x1010:], testImageBase+0x600)

	require.NoError(t, img.relocate(uintptr(testImageBase)+0x100000))

	// both blocks applied, including the one at RVA 0
	assert.Equal(t, uint64(testImageBase+0x100500),
		binary.LittleEndian.Uint64(img.virt[0x30:]))
	assert.Equal(t, uint64(testImageBase+0x100600),
		binary.LittleEndian.Uint64(img.virt[0x1010:]))
}

func TestRelocate_UnsupportedType(t *testing.T) {
	img := &mappedImage{
		virt:          make([]byte, 0x200),
		is64:          true,
		preferredBase: testImageBase,
		relocDir:      dataDir{rva: 0x100, size: 10},
	}
	binary.LittleEndian.PutUint32(img.virt[0x100:], 0)
	binary.LittleEndian.PutUint32(img.virt[0x104:], 10)
	binary.LittleEndian.PutUint16(img.virt[0x108:], 5<<12) // HIGHADJ

	err := img.relocate(uintptr(testImageBase) + 0x1000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported relocation type")
}

func TestResolveImports(t *testing.T) {
	img := &mappedImage{
		virt:      make([]byte, 0x400),
		is64:      true,
		importDir: dataDir{rva: 0x100, size: 40},
	}

	// descriptor: ILT at 0x140, name at 0x180, IAT at 0x160
	binary.LittleEndian.PutUint32(img.virt[0x100:], 0x140)
	binary.LittleEndian.PutUint32(img.virt[0x10C:], 0x180)
	binary.LittleEndian.PutUint32(img.virt[0x110:], 0x160)
	copy(img.virt[0x180:], "kernel32.dll\x00")

	// ILT: one hint/name entry, one ordinal entry, terminator
	binary.LittleEndian.PutUint64(img.virt[0x140:], 0x1A0)
	binary.LittleEndian.PutUint64(img.virt[0x148:], 1<<63|7)
	copy(img.virt[0x1A2:], "ExitProcess\x00")

	var resolved []string
	err := img.resolveImports(func(module, symbol string) (uintptr, error) {
		resolved = append(resolved, module+"!"+symbol)
		return uintptr(0x7FF0000 + len(resolved)), nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"kernel32.dll!ExitProcess", "kernel32.dll!#7"}, resolved)
	assert.Equal(t, uint64(0x7FF0001), binary.LittleEndian.Uint64(img.virt[0x160:]))
	assert.Equal(t, uint64(0x7FF0002), binary.LittleEndian.Uint64(img.virt[0x168:]))
}

func TestResolveImports_NoDirectory(t *testing.T) {
	img := &mappedImage{virt: make([]byte, 0x100), is64: true}

	err := img.resolveImports(func(string, string) (uintptr, error) {
		t.Fatal("resolve called without an import directory")
		return 0, nil
	})
	assert.NoError(t, err)
}

func TestResolveImports_ResolutionFailure(t *testing.T) {
	img := &mappedImage{
		virt:      make([]byte, 0x400),
		is64:      true,
		importDir: dataDir{rva: 0x100, size: 40},
	}
	binary.LittleEndian.PutUint32(img.virt[0x100:], 0x140)
	binary.LittleEndian.PutUint32(img.virt[0x10C:], 0x180)
	binary.LittleEndian.PutUint32(img.virt[0x110:], 0x160)
	copy(img.virt[0x180:], "missing.dll\x00")
	binary.LittleEndian.PutUint64(img.virt[0x140:], 1<<63|1)

	wantErr := errors.New("module not loaded")
	err := img.resolveImports(func(string, string) (uintptr, error) {
		return 0, wantErr
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.Contains(t, err.Error(), "missing.dll")
}
