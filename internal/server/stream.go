package server

import (
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/GriffinCanCode/dialogue-overlay/internal/imageutil"
	"github.com/GriffinCanCode/dialogue-overlay/internal/trace"
)

// handleStream serves the rendered overlay as multipart/x-mixed-replace JPEG
// parts. A part is written only when the render changes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ctx := trace.WithSession(r.Context(), sess.ID)
	log := trace.Logger(ctx)
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+MJPEGBoundary)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Debug("stream flush unsupported", "error", err)
		return
	}
	log.Info("stream connected", "remote", r.RemoteAddr)

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	var last *image.RGBA
	for {
		if img, ok := sess.Render(); ok && img != last {
			if err := s.writePart(w, rc, img); err != nil {
				log.Debug("stream closed", "error", err)
				return
			}
			last = img
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if _, err := s.mgr.Get(sess.ID); err != nil {
			return
		}
	}
}

func (s *Server) writePart(w http.ResponseWriter, rc *http.ResponseController, img image.Image) error {
	data, err := imageutil.EncodeJPEG(img, s.jpegQuality)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", MJPEGBoundary, len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		return err
	}
	return rc.Flush()
}
