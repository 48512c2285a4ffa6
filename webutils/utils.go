package webutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/mogaika/badger_converter/badger"
)

func WriteFileHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
}

func WriteFile(w http.ResponseWriter, in io.Reader, name string) {
	WriteFileHeaders(w, name)
	if _, err := io.Copy(w, in); err != nil {
		log.Warnf("Error when writing file %q: %v", name, err)
	}
}

func WriteJson(w http.ResponseWriter, data interface{}) {
	res, err := json.Marshal(data)
	if err != nil {
		WriteError(w, err)
	} else {
		WriteRawJson(w, res)
	}
}

// WriteRawJson writes already encoded document
func WriteRawJson(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	WriteResult(w, data)
}

func WriteResult(w http.ResponseWriter, data []byte) {
	_, err := w.Write(data)
	if err != nil {
		log.Warnf("Error when writing response: %v", err)
	}
}

// ErrorCode maps typed conversion errors to http status
func ErrorCode(err error) int {
	var notFound *badger.AssetNotFoundError
	var schema *badger.SchemaError
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &schema):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func WriteError(w http.ResponseWriter, err error) {
	WriteErrorCode(w, err, ErrorCode(err))
}

func WriteErrorCode(w http.ResponseWriter, err error, code int) {
	type jError struct {
		Error string `json:"error"`
	}
	data, merr := json.Marshal(&jError{Error: err.Error()})
	if merr != nil {
		log.Errorf("Error marshaling error '%v': %v", err, merr)
		return
	}
	log.Warn("HERR", "code", code, "err", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	WriteResult(w, data)
}
