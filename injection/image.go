package injection

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Binject/debug/pe"
)

// Data directory indices in the PE optional header.
const (
	dirEntryImport    = 1
	dirEntryBaseReloc = 5
)

// Base relocation entry types we apply. Everything else in a block is
// either padding (ABSOLUTE) or unsupported.
const (
	relAbsolute = 0
	relHighLow  = 3
	relDir64    = 10
)

type dataDir struct {
	rva  uint32
	size uint32
}

// mappedImage is a module image laid out in its in-memory (virtual) form,
// ready to be relocated, import-fixed, and written into the target in one
// shot. All fixups happen locally; only the final buffer crosses the
// process boundary.
type mappedImage struct {
	virt []byte

	is64          bool
	preferredBase uint64
	sizeOfImage   uint32
	sizeOfHeaders uint32
	entryRVA      uint32
	relocDir      dataDir
	importDir     dataDir
}

// parseImage parses raw module bytes and builds the virtual layout: headers
// first, then each section copied to its VirtualAddress.
func parseImage(raw []byte) (*mappedImage, error) {
	f, err := pe.NewFile(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse image: %w", err)
	}
	defer f.Close()

	img := &mappedImage{}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader64:
		img.is64 = true
		img.preferredBase = oh.ImageBase
		img.sizeOfImage = oh.SizeOfImage
		img.sizeOfHeaders = oh.SizeOfHeaders
		img.entryRVA = oh.AddressOfEntryPoint
		img.relocDir = dirOf(oh.DataDirectory[:], dirEntryBaseReloc)
		img.importDir = dirOf(oh.DataDirectory[:], dirEntryImport)
	case *pe.OptionalHeader32:
		img.preferredBase = uint64(oh.ImageBase)
		img.sizeOfImage = oh.SizeOfImage
		img.sizeOfHeaders = oh.SizeOfHeaders
		img.entryRVA = oh.AddressOfEntryPoint
		img.relocDir = dirOf(oh.DataDirectory[:], dirEntryBaseReloc)
		img.importDir = dirOf(oh.DataDirectory[:], dirEntryImport)
	default:
		return nil, fmt.Errorf("parse image: unsupported optional header")
	}

	if img.sizeOfImage == 0 || int(img.sizeOfHeaders) > len(raw) {
		return nil, fmt.Errorf("parse image: inconsistent header sizes")
	}

	img.virt = make([]byte, img.sizeOfImage)
	copy(img.virt, raw[:img.sizeOfHeaders])

	for _, section := range f.Sections {
		data, err := section.Data()
		if err != nil {
			return nil, fmt.Errorf("parse image: section %s: %w", section.Name, err)
		}
		end := uint64(section.VirtualAddress) + uint64(len(data))
		if end > uint64(img.sizeOfImage) {
			return nil, fmt.Errorf("parse image: section %s exceeds image size", section.Name)
		}
		copy(img.virt[section.VirtualAddress:], data)
	}

	return img, nil
}

func dirOf(dirs []pe.DataDirectory, index int) dataDir {
	if index >= len(dirs) {
		return dataDir{}
	}
	return dataDir{rva: dirs[index].VirtualAddress, size: dirs[index].Size}
}

// relocate rebases the virtual image to base by walking the base relocation
// table. An image without relocations only loads at its preferred base.
func (img *mappedImage) relocate(base uintptr) error {
	delta := int64(uint64(base) - img.preferredBase)
	if delta == 0 {
		return nil
	}
	if img.relocDir.size == 0 {
		return fmt.Errorf("relocate: image has no relocation table and 0x%x != preferred base 0x%x",
			base, img.preferredBase)
	}

	offset := img.relocDir.rva
	end := img.relocDir.rva + img.relocDir.size
	for offset+8 <= end {
		blockRVA := binary.LittleEndian.Uint32(img.virt[offset:])
		blockSize := binary.LittleEndian.Uint32(img.virt[offset+4:])
		// a block at RVA 0 is a real block (fixups in the first page);
		// only a degenerate size ends the walk early
		if blockSize < 8 {
			break
		}
		entryCount := (blockSize - 8) / 2
		for i := uint32(0); i < entryCount; i++ {
			entry := binary.LittleEndian.Uint16(img.virt[offset+8+i*2:])
			relType := entry >> 12
			relOffset := uint32(entry & 0xFFF)
			target := blockRVA + relOffset

			switch relType {
			case relAbsolute:
				// block padding
			case relHighLow:
				if int(target)+4 > len(img.virt) {
					return fmt.Errorf("relocate: entry out of bounds at rva 0x%x", target)
				}
				v := binary.LittleEndian.Uint32(img.virt[target:])
				binary.LittleEndian.PutUint32(img.virt[target:], uint32(int64(v)+delta))
			case relDir64:
				if int(target)+8 > len(img.virt) {
					return fmt.Errorf("relocate: entry out of bounds at rva 0x%x", target)
				}
				v := binary.LittleEndian.Uint64(img.virt[target:])
				binary.LittleEndian.PutUint64(img.virt[target:], uint64(int64(v)+delta))
			default:
				return fmt.Errorf("relocate: unsupported relocation type %d", relType)
			}
		}
		offset += blockSize
	}
	return nil
}

// resolveImports patches the import address table in the virtual image.
// resolve must return an address valid inside the target; for system
// modules the shared base makes a local resolution good enough, which is
// the shortcut every user-mode mapper takes.
func (img *mappedImage) resolveImports(resolve func(module, symbol string) (uintptr, error)) error {
	if img.importDir.size == 0 {
		return nil
	}

	thunkSize := uint32(4)
	ordinalBit := uint64(1) << 31
	if img.is64 {
		thunkSize = 8
		ordinalBit = uint64(1) << 63
	}

	// 20-byte import descriptors, terminated by an all-zero entry.
	for descOffset := img.importDir.rva; ; descOffset += 20 {
		if int(descOffset)+20 > len(img.virt) {
			return fmt.Errorf("imports: descriptor out of bounds at rva 0x%x", descOffset)
		}
		originalFirstThunk := binary.LittleEndian.Uint32(img.virt[descOffset:])
		nameRVA := binary.LittleEndian.Uint32(img.virt[descOffset+12:])
		firstThunk := binary.LittleEndian.Uint32(img.virt[descOffset+16:])
		if nameRVA == 0 && firstThunk == 0 {
			break
		}

		moduleName, err := img.cstring(nameRVA)
		if err != nil {
			return fmt.Errorf("imports: %w", err)
		}

		lookup := originalFirstThunk
		if lookup == 0 {
			lookup = firstThunk
		}

		for i := uint32(0); ; i++ {
			thunkRVA := lookup + i*thunkSize
			value, err := img.thunkAt(thunkRVA, thunkSize)
			if err != nil {
				return fmt.Errorf("imports: %s: %w", moduleName, err)
			}
			if value == 0 {
				break
			}

			var symbol string
			if value&ordinalBit != 0 {
				symbol = fmt.Sprintf("#%d", value&0xFFFF)
			} else {
				// hint/name entry: 2-byte hint, then the name
				symbol, err = img.cstring(uint32(value) + 2)
				if err != nil {
					return fmt.Errorf("imports: %s: %w", moduleName, err)
				}
			}

			addr, err := resolve(moduleName, symbol)
			if err != nil {
				return fmt.Errorf("imports: %s!%s: %w", moduleName, symbol, err)
			}

			iatRVA := firstThunk + i*thunkSize
			if int(iatRVA)+int(thunkSize) > len(img.virt) {
				return fmt.Errorf("imports: %s: IAT out of bounds", moduleName)
			}
			if img.is64 {
				binary.LittleEndian.PutUint64(img.virt[iatRVA:], uint64(addr))
			} else {
				binary.LittleEndian.PutUint32(img.virt[iatRVA:], uint32(addr))
			}
		}
	}
	return nil
}

func (img *mappedImage) thunkAt(rva, size uint32) (uint64, error) {
	if int(rva)+int(size) > len(img.virt) {
		return 0, fmt.Errorf("thunk out of bounds at rva 0x%x", rva)
	}
	if size == 8 {
		return binary.LittleEndian.Uint64(img.virt[rva:]), nil
	}
	return uint64(binary.LittleEndian.Uint32(img.virt[rva:])), nil
}

func (img *mappedImage) cstring(rva uint32) (string, error) {
	if int(rva) >= len(img.virt) {
		return "", fmt.Errorf("string out of bounds at rva 0x%x", rva)
	}
	end := bytes.IndexByte(img.virt[rva:], 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated string at rva 0x%x", rva)
	}
	return string(img.virt[rva : int(rva)+end]), nil
}
