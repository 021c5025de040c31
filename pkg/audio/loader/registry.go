package loader

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
)

type decoderWithPriority struct {
	Priority int
	Decoder
}

var decoderRegistry = map[reflect.Type]decoderWithPriority{}

func RegisterDecoder(
	priority int,
	decoder Decoder,
) {
	t := reflect.ValueOf(decoder).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if _, ok := decoderRegistry[t]; ok {
		panic(fmt.Errorf("there is already registered a decoder of type %v", t))
	}
	decoderRegistry[t] = decoderWithPriority{
		Priority: priority,
		Decoder:  decoder,
	}
}

// Decoders returns all the registered decoders, the most preferred first.
func Decoders() []Decoder {
	var decodersWithPriorities []decoderWithPriority
	for _, decoder := range decoderRegistry {
		decodersWithPriorities = append(decodersWithPriorities, decoder)
	}
	sort.Slice(decodersWithPriorities, func(i, j int) bool {
		return decodersWithPriorities[i].Priority > decodersWithPriorities[j].Priority
	})

	var decoders []Decoder
	for _, decoder := range decodersWithPriorities {
		decoders = append(decoders, decoder.Decoder)
	}
	return decoders
}

// DecoderForPath returns the most preferred registered decoder that
// handles the file extension of path, or nil.
func DecoderForPath(path string) Decoder {
	return decoderForExtension(Decoders(), path)
}

func decoderForExtension(decoders []Decoder, path string) Decoder {
	ext := strings.ToLower(filepath.Ext(path))
	for _, decoder := range decoders {
		for _, candidate := range decoder.Extensions() {
			if strings.ToLower(candidate) == ext {
				return decoder
			}
		}
	}
	return nil
}
