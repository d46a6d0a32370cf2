package controllers

import (
	"net/http"

	"github.com/mfigueroa/ordercore-backend/api/responses"
	erpsyncsvc "github.com/mfigueroa/ordercore-backend/internal/erpsync"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
)

// TriggerERPSync runs one catalog sweep on demand. The same sweep runs
// on a schedule in the cron worker; this endpoint exists for operators
// who do not want to wait for the next tick.
func TriggerERPSync(svc erpsyncsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "erp integration not configured"))
			return
		}

		result, err := svc.SyncCatalog(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := erpSyncResponse{Synced: result.Synced, Failed: result.Failed}
		if result.Errors != nil {
			resp.Detail = result.Errors.Error()
		}
		responses.WriteSuccess(w, resp)
	}
}

type erpSyncResponse struct {
	Synced int    `json:"synced"`
	Failed int    `json:"failed"`
	Detail string `json:"detail,omitempty"`
}
