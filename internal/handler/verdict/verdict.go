package verdict

import (
	"net/http"

	"github.com/huavcjj/mailgate/internal/handler/respond"
	verdict_service "github.com/huavcjj/mailgate/internal/service/verdict"
)

type VerdictHandler struct {
	verdictService *verdict_service.Service
}

func NewVerdictHandler(verdictService *verdict_service.Service) *VerdictHandler {
	return &VerdictHandler{
		verdictService: verdictService,
	}
}

func (h *VerdictHandler) HandleVerdict(w http.ResponseWriter, r *http.Request) {
	p, err := respond.ReadParams(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	res, err := h.verdictService.Evaluate(r.Context(), p["text"])
	if err != nil {
		respond.Error(w, err)
		return
	}

	if res.Suppressed {
		respond.JSON(w, http.StatusOK, map[string]any{"ok": true, "suppressed": true, "confidence": res.Confidence})
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"verdict":    res.Verdict.Verdict,
		"confidence": res.Verdict.Confidence,
		"advice":     res.Verdict.Advice,
	})
}
