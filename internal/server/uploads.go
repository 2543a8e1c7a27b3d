package server

import (
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/letmevibethatforyou/promptplace/internal/uploads"
)

const maxMultipartMemory = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, uploads.ErrNoFiles.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	var headers []*multipart.FileHeader
	for _, fhs := range r.MultipartForm.File {
		headers = append(headers, fhs...)
	}
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, uploads.ErrNoFiles.Error())
		return
	}

	files := make([]*uploads.File, 0, len(headers))
	for _, fh := range headers {
		f, err := s.upload(r, fh)
		if err != nil {
			zerolog.Ctx(r.Context()).Err(err).Str("file_name", fh.Filename).Msg("Upload failed")
			writeError(w, http.StatusInternalServerError, "Upload failed")
			return
		}
		files = append(files, f)
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) upload(r *http.Request, fh *multipart.FileHeader) (*uploads.File, error) {
	body, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return s.app.Uploads.Upload(r.Context(), fh.Filename, fh.Header.Get("Content-Type"), body)
}

func (s *Server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "publicID")
	if err := s.app.Uploads.Delete(r.Context(), id); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("public_id", id).Msg("Failed to delete upload")
		writeError(w, http.StatusBadRequest, "Delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
