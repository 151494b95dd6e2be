package core

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"io"
	"testing"
)

func decodeDictionary(t *testing.T, data []byte) dictionaryJSON {
	t.Helper()

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("zlib.NewReader: %v", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}

	var doc dictionaryJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return doc
}

func TestDictionary(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())

	dict.AddConstant("SOFT_PWM_MAX", uint32(255))
	dict.AddConstant("MCU", "rp2040")
	dict.AddEnumeration("pin", []string{"gpio0", "", "gpio2"})
	dict.commandReg.Register("identify_response", "offset=%u data=%*s", nil)
	dict.commandReg.Register("set_soft_pwm", "pin=%u value=%hu", func(data *[]byte) error {
		return nil
	})

	doc := decodeDictionary(t, dict.Generate())

	if doc.Version != "softpwm-0.1.0" {
		t.Errorf("version = %q", doc.Version)
	}
	if doc.Config["SOFT_PWM_MAX"] != "255" || doc.Config["MCU"] != "rp2040" {
		t.Errorf("config = %v", doc.Config)
	}
	if id, ok := doc.Commands["set_soft_pwm pin=%u value=%hu"]; !ok || id != 1 {
		t.Errorf("commands = %v", doc.Commands)
	}
	if id, ok := doc.Responses["identify_response offset=%u data=%*s"]; !ok || id != 0 {
		t.Errorf("responses = %v", doc.Responses)
	}

	pins := doc.Enumerations["pin"]
	if pins["gpio0"] != 0 || pins["gpio2"] != 2 || len(pins) != 2 {
		t.Errorf("pin enumeration = %v", pins)
	}
}

func TestDictionaryCacheInvalidation(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	if err := dict.BuildDictionary(); err != nil {
		t.Fatalf("BuildDictionary: %v", err)
	}

	dict.AddConstant("SOFT_PWM_CHANNELS", MaxSoftPWMChannels)

	doc := decodeDictionary(t, dict.Generate())
	if doc.Config["SOFT_PWM_CHANNELS"] != "8" {
		t.Errorf("constant added after build is missing: %v", doc.Config)
	}
}

func TestDictionaryVersions(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	if err := dict.BuildDictionary(); err != nil {
		t.Fatalf("BuildDictionary: %v", err)
	}

	dict.SetVersion("v1.2.3")
	dict.SetBuildVersions("tinygo 0.39.0")

	doc := decodeDictionary(t, dict.Generate())
	if doc.Version != "v1.2.3" || doc.BuildVersions != "tinygo 0.39.0" {
		t.Errorf("version = %q build_versions = %q", doc.Version, doc.BuildVersions)
	}
}

func TestDictionaryChunks(t *testing.T) {
	dict := NewDictionary(NewCommandRegistry())
	dict.AddConstant("TEST", uint32(123))

	full := dict.Generate()

	var reassembled []byte
	for offset := uint32(0); ; {
		chunk := dict.GetChunk(offset, 10)
		if len(chunk) > 10 {
			t.Fatalf("chunk too large: %d bytes", len(chunk))
		}
		if len(chunk) == 0 {
			break
		}
		reassembled = append(reassembled, chunk...)
		offset += uint32(len(chunk))
	}

	if !bytes.Equal(reassembled, full) {
		t.Error("reassembled chunks differ from the full dictionary")
	}

	if chunk := dict.GetChunk(uint32(len(full)+100), 10); len(chunk) != 0 {
		t.Error("Chunk beyond end should be empty")
	}
}
