// Package web serves resolved asset pack documents and on-demand conversions.
package web

import (
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/mogaika/badger_converter/config"
	"github.com/mogaika/badger_converter/importer"
	"github.com/mogaika/badger_converter/resources"
	"github.com/mogaika/badger_converter/utils/gltfutils"
)

// Server owns shared loader, every request touching it holds mu
type Server struct {
	cfg   *config.Config
	roots []string

	mu       sync.Mutex
	loader   *resources.Loader
	importer *importer.Importer
}

func NewServer(cfg *config.Config, roots []string) *Server {
	s := &Server{cfg: cfg, roots: roots}
	s.reload()
	return s
}

// reload drops memoized documents by replacing loader and importer
func (s *Server) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loader = resources.NewLoader(s.cfg, s.roots...)
	s.importer = importer.New(s.cfg, s.loader)
}

func (s *Server) gltfOptions() gltfutils.Options {
	return gltfutils.Options{
		MaxTextureSize: s.cfg.MaxTextureSize,
		WebP:           s.cfg.WebPTextures,
	}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/json/packs", s.HandlerPacks)
	r.HandleFunc("/json/list/{kind}", s.HandlerList)
	r.HandleFunc("/json/{kind}/{name}", s.HandlerDocument)
	r.HandleFunc("/export/fbx/{name}", s.HandlerExportFbx)
	r.HandleFunc("/export/zip/{name}", s.HandlerExportZip)
	r.HandleFunc("/export/glb/{name}", s.HandlerExportGlb)
	r.HandleFunc("/status", HandlerStatus)
	return r
}

func StartServer(addr string, cfg *config.Config, roots []string) error {
	s := NewServer(cfg, roots)

	stop, err := s.Watch()
	if err != nil {
		log.Warnf("[web] Pack watcher disabled: %v", err)
	} else {
		defer stop()
	}

	h := handlers.RecoveryHandler()(s.Router())
	h = handlers.LoggingHandler(os.Stdout, h)

	log.Infof("[web] Starting server %v", addr)

	return http.ListenAndServe(addr, h)
}
