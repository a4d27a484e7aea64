package facade

import "net/http"

func (f *Facade) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !f.ready.Load() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
