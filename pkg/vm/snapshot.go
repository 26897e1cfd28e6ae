package vm

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"bonsaic/pkg/wasm"
)

// snapshotState is the JSON part of a snapshot: everything but memory.
type snapshotState struct {
	Globals []snapshotGlobal `json:"globals"`
	Steps   int              `json:"steps"`
}

type snapshotGlobal struct {
	Name string  `json:"name"`
	Type string  `json:"type"`
	I32  int32   `json:"i32,omitempty"`
	F64  float64 `json:"f64,omitempty"`
}

// SnapshotToBytes serialises globals and linear memory into a ZIP archive
// holding vm_state.json and memory.bin.
func (v *VM) SnapshotToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := snapshotState{Steps: v.Steps}
	for i, g := range v.module.Globals {
		val := v.Globals[i]
		state.Globals = append(state.Globals, snapshotGlobal{
			Name: g.Name,
			Type: g.Type.String(),
			I32:  val.I32,
			F64:  val.F64,
		})
	}
	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal vm_state: %w", err)
	}
	if err := writeZipEntry(zw, "vm_state.json", jsonData); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "memory.bin", v.Memory[:]); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes applies a snapshot produced by SnapshotToBytes. Globals are
// matched by position and must agree in name and type with the loaded module.
func (v *VM) RestoreFromBytes(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, "vm_state.json")
	if err != nil {
		return err
	}
	var state snapshotState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return fmt.Errorf("unmarshal vm_state: %w", err)
	}
	if len(state.Globals) != len(v.module.Globals) {
		return fmt.Errorf("snapshot has %d globals, module has %d", len(state.Globals), len(v.module.Globals))
	}
	globals := make([]Value, len(state.Globals))
	for i, sg := range state.Globals {
		g := v.module.Globals[i]
		if sg.Name != g.Name || sg.Type != g.Type.String() {
			return fmt.Errorf("snapshot global %d is %s %s, module has %s %s", i, sg.Type, sg.Name, g.Type, g.Name)
		}
		if g.Type == wasm.F64 {
			globals[i] = F64(sg.F64)
		} else {
			globals[i] = I32(sg.I32)
		}
	}

	mem, err := readZipEntry(fileMap, "memory.bin")
	if err != nil {
		return err
	}
	if len(mem) != MemorySize {
		return fmt.Errorf("snapshot memory is %d bytes, want %d", len(mem), MemorySize)
	}

	copy(v.Globals, globals)
	copy(v.Memory[:], mem)
	v.Steps = state.Steps
	return nil
}

// SnapshotToFile writes the snapshot archive to path.
func (v *VM) SnapshotToFile(path string) error {
	data, err := v.SnapshotToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile restores from the archive at path. A missing file leaves
// the VM untouched and reports false.
func (v *VM) RestoreFromFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	return true, v.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
