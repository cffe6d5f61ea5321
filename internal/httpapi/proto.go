package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads. Kiosk requests are a handful of short fields.
const maxRequestBody = 4096

const protobufContentType = "application/x-protobuf"

var errEmptyBody = errors.New("empty body")

// isProtobuf returns true if the request body is a protobuf
// google.protobuf.Struct.
func isProtobuf(r *http.Request) bool {
	return isProtoType(r.Header.Get("Content-Type"))
}

// wantsProtobuf returns true if the client asked for protobuf responses.
func wantsProtobuf(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if isProtoType(mt) {
			return true
		}
	}
	return false
}

func isProtoType(ct string) bool {
	return ct == protobufContentType || ct == "application/protobuf"
}

// readRequest decodes the body into dst. JSON bodies must not carry
// unknown fields; protobuf bodies are a Struct with the same keys. An
// empty body leaves dst untouched.
func readRequest(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errEmptyBody
	}

	if isProtobuf(r) {
		var s structpb.Struct
		if err := proto.Unmarshal(body, &s); err != nil {
			return err
		}
		if body, err = json.Marshal(s.AsMap()); err != nil {
			return err
		}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// toStruct converts any JSON-encodable value into a Struct by way of its
// JSON form, so both encodings carry the same keys.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

// writeProto marshals msg and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		// Fall back to a plain-text error if marshalling fails.
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respond writes v as JSON, or as a protobuf Struct when the client
// negotiated it.
func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !wantsProtobuf(r) {
		writeJSON(w, status, v)
		return
	}
	s, err := toStruct(v)
	if err != nil {
		http.Error(w, "proto encode error", http.StatusInternalServerError)
		return
	}
	writeProto(w, status, s)
}
