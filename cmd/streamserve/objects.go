package main

import (
	"github.com/gin-gonic/gin"

	"github.com/kbukum/streamkit/delivery"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/server"
	"github.com/kbukum/streamkit/storage"
	_ "github.com/kbukum/streamkit/storage/local"
	_ "github.com/kbukum/streamkit/storage/s3"
)

const (
	objectsPath = "/objects"
	objectKey   = "object"
)

// objects serves the configured object store.
type objects struct {
	store     *storage.Component
	chunkSize int
}

func registerObjectRoutes(srv *server.Server, store *storage.Component, chunkSize int) {
	o := objects{store: store, chunkSize: chunkSize}
	srv.GinEngine().GET(objectsPath, o.list)
	srv.StreamGET(objectsPath+"/*path", o.stream, o.stat)
}

func (o objects) backend(c *gin.Context) (storage.Storage, bool) {
	st := o.store.Storage()
	if st == nil {
		server.RespondWithError(c, errors.ServiceUnavailable("object store"))
		return nil, false
	}
	return st, true
}

// list answers with the objects under the prefix query parameter.
func (o objects) list(c *gin.Context) {
	st, ok := o.backend(c)
	if !ok {
		return
	}
	objs, err := st.List(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		server.RespondWithError(c, storage.AsAppError(err, c.Query("prefix")))
		return
	}
	if objs == nil {
		objs = []storage.Object{}
	}
	server.RespondOK(c, objs)
}

// stat resolves the object before the stream starts, so a missing key is a
// 404 rather than a body failure.
func (o objects) stat(c *gin.Context) {
	st, ok := o.backend(c)
	if !ok {
		return
	}
	p := c.Param("path")
	obj, err := st.Stat(c.Request.Context(), p)
	if err != nil {
		server.RespondWithError(c, storage.AsAppError(err, p))
		return
	}
	c.Set(objectKey, obj)
}

func (o objects) stream(c *gin.Context) (*delivery.Response, error) {
	obj := c.MustGet(objectKey).(storage.Object)
	return storage.Response(o.store.Storage(), obj, o.chunkSize), nil
}
