package web

import (
	"bytes"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/badger"
	"github.com/mogaika/badger_converter/fbxscene"
	"github.com/mogaika/badger_converter/resources"
	"github.com/mogaika/badger_converter/scene"
	"github.com/mogaika/badger_converter/status"
	"github.com/mogaika/badger_converter/utils/gltfutils"
	"github.com/mogaika/badger_converter/webutils"
)

type packInfo struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (s *Server) HandlerPacks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	packs := make([]packInfo, 0, len(s.loader.Packs()))
	for _, p := range s.loader.Packs() {
		packs = append(packs, packInfo{Name: p.Name, Path: p.Path()})
	}
	webutils.WriteJson(w, packs)
}

func parseKind(r *http.Request) (resources.Kind, error) {
	kind := resources.Kind(mux.Vars(r)["kind"])
	for _, k := range resources.Kinds {
		if k == kind {
			return kind, nil
		}
	}
	return "", errors.Errorf("Unknown asset kind %q", kind)
}

func (s *Server) HandlerList(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r)
	if err != nil {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if names, err := s.loader.List(kind); err != nil {
		webutils.WriteError(w, err)
	} else {
		webutils.WriteJson(w, names)
	}
}

// document returns resolved document re-encoded, inheritance already applied
func (s *Server) document(kind resources.Kind, name string) ([]byte, error) {
	switch kind {
	case resources.KindModel:
		m, err := s.loader.GetModel(name)
		if err != nil {
			return nil, err
		}
		return badger.MarshalModel(m)
	case resources.KindMaterial:
		m, err := s.loader.GetMaterial(name)
		if err != nil {
			return nil, err
		}
		return badger.MarshalMetaMaterial(m)
	case resources.KindEntity:
		e, err := s.loader.GetEntity(name)
		if err != nil {
			return nil, err
		}
		return badger.MarshalEntity(e)
	case resources.KindAnimations:
		set, ok, err := s.loader.GetAnimations(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &badger.AssetNotFoundError{Kind: string(kind), Name: name}
		}
		return badger.MarshalAnimationSet(set)
	}
	return nil, errors.Errorf("Unknown asset kind %q", kind)
}

func (s *Server) HandlerDocument(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r)
	if err != nil {
		webutils.WriteErrorCode(w, err, http.StatusBadRequest)
		return
	}
	name := mux.Vars(r)["name"]

	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.document(kind, name)
	if err != nil {
		log.Warnf("Error getting %s %q: %v", kind, name, err)
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteRawJson(w, data)
}

// convert imports model and encodes resulting scene, reporting progress as a status job
func (s *Server) convert(w http.ResponseWriter, name, ext string, encode func(*scene.Scene, *bytes.Buffer) error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := status.StartJob("export " + name + ext)
	job.Progress(0.1, "Importing %s", name)
	sc, err := s.importer.Import(name)
	if err != nil {
		job.Fail(err)
		webutils.WriteError(w, err)
		return
	}

	job.Progress(0.6, "Encoding %s%s", name, ext)
	var buf bytes.Buffer
	if err := encode(sc, &buf); err != nil {
		job.Fail(err)
		webutils.WriteError(w, err)
		return
	}
	job.Done()
	webutils.WriteFile(w, &buf, name+ext)
}

func (s *Server) HandlerExportFbx(w http.ResponseWriter, r *http.Request) {
	s.convert(w, mux.Vars(r)["name"], ".fbx", func(sc *scene.Scene, buf *bytes.Buffer) error {
		return fbxscene.Write(sc, buf)
	})
}

func (s *Server) HandlerExportZip(w http.ResponseWriter, r *http.Request) {
	s.convert(w, mux.Vars(r)["name"], ".zip", func(sc *scene.Scene, buf *bytes.Buffer) error {
		return fbxscene.WriteZip(sc, buf)
	})
}

func (s *Server) HandlerExportGlb(w http.ResponseWriter, r *http.Request) {
	opts := s.gltfOptions()
	s.convert(w, mux.Vars(r)["name"], ".glb", func(sc *scene.Scene, buf *bytes.Buffer) error {
		return gltfutils.ExportScene(sc, buf, opts)
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func HandlerStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("[web] status upgrade failed: %v", err)
		return
	}
	status.NewClient(conn)
}
