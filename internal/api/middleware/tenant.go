package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

const tenantIDKey contextKey = "tenant_id"

// RequireTenant enforces the tenant isolation boundary at the HTTP edge:
// every request must carry an X-Tenant-ID header, which is stored on the
// request context and threaded into every store and task operation.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant-ID")
		if tenantID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "X-Tenant-ID header is required"})
			return
		}
		ctx := context.WithValue(r.Context(), tenantIDKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTenantID retrieves the tenant ID stored by RequireTenant.
func GetTenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantIDKey).(string)
	return v
}
