package injection

import (
	"errors"
	"os"
)

var errNoEntryPoint = errors.New("image has no entry point")

// manualMapMethod maps the module image into the target by hand: parse the
// file, lay it out virtually, relocate and fix imports locally, write the
// finished image, then start a thread at the image's own entry point. The
// target's loader is never involved, so the image region persists as the
// module's backing memory once execution begins.
type manualMapMethod struct {
	img    *mappedImage
	region *RemoteAllocation
}

// ManualMap returns the manual-mapping method.
func ManualMap() Method { return &manualMapMethod{} }

func (m *manualMapMethod) Name() string { return "manualmap" }

func (m *manualMapMethod) Access() uint32 {
	return AccessCreateThread | AccessVMOperation | AccessVMWrite |
		AccessVMRead | AccessQueryInformation
}

func (m *manualMapMethod) stage(a *attempt) error {
	raw, err := os.ReadFile(a.modulePath)
	if err != nil {
		return errKind(KindInvalidInput, "read_module", err)
	}
	img, err := parseImage(raw)
	if err != nil {
		return errKind(KindInvalidInput, "parse_module", err)
	}

	// Staged read-write; escalated to executable only in the entry-point
	// phase, once the image contents are final.
	region, err := a.alloc(uintptr(img.sizeOfImage), PageReadWrite)
	if err != nil {
		return err
	}

	if err := img.relocate(region.Base()); err != nil {
		return errKind(KindInvalidInput, "relocate", err)
	}
	if err := img.resolveImports(a.os.ResolveExport); err != nil {
		return errKind(KindSymbolResolutionFailed, "resolve_imports", err)
	}

	if err := a.write(region.Base(), img.virt); err != nil {
		return err
	}

	m.img = img
	m.region = region
	a.log.Debug("image mapped at 0x%x (%d bytes)", region.Base(), img.sizeOfImage)
	return nil
}

func (m *manualMapMethod) entryPoint(a *attempt) (uintptr, error) {
	if m.img.entryRVA == 0 {
		return 0, errKind(KindSymbolResolutionFailed, "entry_point",
			errNoEntryPoint)
	}
	if err := a.protect(m.region.Base(), m.region.Size(), PageExecuteRead); err != nil {
		return 0, errKind(KindAllocationFailed, "virtual_protect", err)
	}
	return m.region.Base() + uintptr(m.img.entryRVA), nil
}

// The mapped image is self-contained; the entry thread takes no argument.
func (m *manualMapMethod) threadParam(*attempt) uintptr { return 0 }

// executionStarted pins the image region: from here on it backs a running
// module inside the target and must never be freed by the engine.
func (m *manualMapMethod) executionStarted(*attempt) {
	m.region.markPersistent()
}

// The mapped base is known regardless of what the entry thread returned.
func (m *manualMapMethod) moduleBase(_ *attempt, _ uint32) (uintptr, error) {
	return m.region.Base(), nil
}
