package internal

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// dumpEncMode is canonical so the same compilation always dumps the same bytes.
var dumpEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("internal: failed to create CBOR enc mode: %v", err))
	}
	dumpEncMode = em
}

type DumpVariable struct {
	Name string `cbor:"name"`
	Type string `cbor:"type"`
	Slot int    `cbor:"slot"`
}

// DumpRecord is the debug view of a compilation.
type DumpRecord struct {
	Program      string         `cbor:"program"`
	Variables    []DumpVariable `cbor:"variables"`
	Instructions []string       `cbor:"instructions"`
}

// Dump encodes the program's variables in slot order and its instruction listing.
func Dump(program string, symbols *SymbolTable, listing []string) ([]byte, error) {
	record := DumpRecord{Program: program, Instructions: listing}
	for _, variable := range symbols.Variables() {
		record.Variables = append(record.Variables, DumpVariable{
			Name: variable.Name,
			Type: variable.Type.String(),
			Slot: variable.Slot,
		})
	}
	return dumpEncMode.Marshal(record)
}

func UnmarshalDump(data []byte) (*DumpRecord, error) {
	var record DumpRecord
	if err := cbor.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("internal: unmarshal dump: %w", err)
	}
	return &record, nil
}
