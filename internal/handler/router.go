package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/hotel-frontdesk/backend/internal/handler/chat"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/handler/hotel"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/handler/speech"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/hotel-frontdesk/backend/internal/middleware"
	chatService "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/chat"
	hotelService "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/hotel"
	speechService "github.com/zhouzirui/hotel-frontdesk/backend/internal/service/speech"
	"github.com/zhouzirui/hotel-frontdesk/backend/internal/service/voice"
	"github.com/zhouzirui/hotel-frontdesk/backend/pkg/utils"
)

// ServiceName 出现在健康检查与 API 横幅里。
const ServiceName = "hotel-frontdesk-assistant"

// Services 是路由依赖的业务服务集合。
type Services struct {
	Chat   *chatService.Service
	Hotel  *hotelService.Service
	Speech *speechService.Service
	Voice  *voice.Pipeline
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": ServiceName,
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"service": ServiceName,
				"message": "Hotel front desk assistant API",
				"voice":   svc.Speech.Capabilities(),
			})
		})

		chat.New(svc.Chat, logger).RegisterRoutes(api)
		stream.New(svc.Chat, logger).RegisterRoutes(api)
		hotel.New(svc.Hotel, logger).RegisterRoutes(api)
		speech.New(svc.Speech, svc.Voice, svc.Chat, logger).RegisterRoutes(api)
	})

	return r
}
