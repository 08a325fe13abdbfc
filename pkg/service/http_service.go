package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/olapsync/olap_syncer/pkg/storage"
	"github.com/olapsync/olap_syncer/pkg/syncer"
	"github.com/olapsync/olap_syncer/pkg/version"
	"github.com/olapsync/olap_syncer/pkg/xerror"
)

type HttpService struct {
	port   int
	server *http.Server
	mux    *http.ServeMux

	db       storage.DB
	registry *syncer.Registry
	syncer   *syncer.Syncer
}

func NewHttpServer(port int, db storage.DB, registry *syncer.Registry, s *syncer.Syncer) *HttpService {
	return &HttpService{
		port: port,
		mux:  http.NewServeMux(),

		db:       db,
		registry: registry,
		syncer:   s,
	}
}

type EntityRequest struct {
	// must need all fields required
	Entity string `json:"entity,required"`
}

func (s *HttpService) parseEntity(w http.ResponseWriter, r *http.Request) (*syncer.Entity, bool) {
	var request EntityRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if request.Entity == "" {
		http.Error(w, "entity is empty", http.StatusBadRequest)
		return nil, false
	}

	entity, ok := s.registry.Get(request.Entity)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown entity %s", request.Entity), http.StatusNotFound)
		return nil, false
	}
	return entity, true
}

func (s *HttpService) versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(version.GetVersion()))
}

type EntityStatus struct {
	ImportKey   string `json:"import_key"`
	SourceKind  string `json:"source_kind"`
	Disabled    bool   `json:"disabled"`
	QueueLength int    `json:"queue_length"`
	LastSync    string `json:"last_sync,omitempty"`
}

func (s *HttpService) entitiesHandler(w http.ResponseWriter, r *http.Request) {
	log.Infof("get entities status")

	statuses := make([]EntityStatus, 0)
	for _, entity := range s.registry.Entities() {
		status := EntityStatus{
			ImportKey:  entity.ImportKey,
			SourceKind: entity.SourceKind,
			Disabled:   entity.Disabled,
		}
		if depth, err := s.db.OperationsCount(entity.ImportKey); err == nil {
			status.QueueLength = depth
		}
		if last, err := s.db.GetLastSyncTime(entity.ImportKey); err == nil && last != nil {
			status.LastSync = last.Format(time.RFC3339)
		}
		statuses = append(statuses, status)
	}

	if data, err := json.Marshal(statuses); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	} else {
		w.Write(data)
	}
}

func (s *HttpService) queueLengthHandler(w http.ResponseWriter, r *http.Request) {
	log.Infof("get queue length")

	entity, ok := s.parseEntity(w, r)
	if !ok {
		return
	}

	depth, err := s.db.OperationsCount(entity.ImportKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write([]byte(fmt.Sprintf("queue_length: %d", depth)))
}

// manual sync trigger, bypasses the sync delay but not the lease
func (s *HttpService) syncHandler(w http.ResponseWriter, r *http.Request) {
	log.Infof("manual sync")

	entity, ok := s.parseEntity(w, r)
	if !ok {
		return
	}

	if err := s.syncer.SyncBatch(r.Context(), entity); err != nil {
		log.Errorf("manual sync failed: %+v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write([]byte("sync success"))
}

func (s *HttpService) flushHandler(w http.ResponseWriter, r *http.Request) {
	log.Infof("flush entity queue")

	entity, ok := s.parseEntity(w, r)
	if !ok {
		return
	}

	if err := s.db.FlushImportKey(entity.ImportKey); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write([]byte("flush success"))
}

func (s *HttpService) RegisterHandlers() {
	s.mux.HandleFunc("/version", s.versionHandler)
	s.mux.HandleFunc("/entities", s.entitiesHandler)
	s.mux.HandleFunc("/queue_length", s.queueLengthHandler)
	s.mux.HandleFunc("/sync", s.syncHandler)
	s.mux.HandleFunc("/flush", s.flushHandler)
}

func (s *HttpService) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Infof("Server listening on %s", addr)

	s.RegisterHandlers()

	s.server = &http.Server{Addr: addr, Handler: s.mux}
	err := s.server.ListenAndServe()
	if err == nil {
		return nil
	} else if err == http.ErrServerClosed {
		log.Info("http server closed")
		return nil
	} else {
		return xerror.Wrapf(err, xerror.Normal, "http server start on %s failed", addr)
	}
}

func (s *HttpService) Stop() error {
	if err := s.server.Shutdown(context.TODO()); err != nil {
		return xerror.Wrapf(err, xerror.Normal, "http server close failed")
	}
	return nil
}
