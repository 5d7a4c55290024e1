package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"storefront-connect-layer/internal/application"
	"storefront-connect-layer/internal/application/webhook_handlers"
	"storefront-connect-layer/internal/domain"
	"storefront-connect-layer/internal/infrastructure/dedup"
	"storefront-connect-layer/internal/infrastructure/encryption"
	"storefront-connect-layer/internal/infrastructure/metrics"
	"storefront-connect-layer/internal/infrastructure/platform"
	"storefront-connect-layer/internal/infrastructure/repository"
	"storefront-connect-layer/internal/ports"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// stateCookieName carries the local copy of the anti-forgery token
// between install and callback.
const stateCookieName = "storefront_oauth_state"

type config struct {
	MongoURI      string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"storefront_connect"`
	RedisURL      string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	ProviderClientID     string `env:"PROVIDER_CLIENT_ID,required"`
	ProviderClientSecret string `env:"PROVIDER_CLIENT_SECRET,required"`
	WebhookSecret        string `env:"PROVIDER_WEBHOOK_SECRET,required"`

	Scopes []string `env:"OAUTH_SCOPES" envSeparator:"," envDefault:"read_products,write_products,read_orders,write_orders"`

	AppURL      string `env:"APP_URL" envDefault:"http://localhost:8080"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	Port        string `env:"PORT" envDefault:"8080"`
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("No .env file found")
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Fatal().Err(err).Msg("Failed to parse configuration")
	}

	// Connect to MongoDB
	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer mongoClient.Disconnect(context.Background())
	db := mongoClient.Database(cfg.MongoDatabase)

	// Connect to Redis (webhook replay guard)
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to parse Redis URL")
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	// Repositories
	stateRepo := repository.NewMongoStateRepository(db)
	storeRepo := repository.NewMongoStoreCredentialRepository(db)
	legacyRepo := repository.NewMongoLegacyCredentialRepository(db)
	auditRepo := repository.NewMongoAuditRepository(db)

	// Services
	auditSvc := application.NewAuditService(auditRepo, logger)

	vault, err := encryption.NewService(cfg.EncryptionKey, auditSvc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize credential vault")
	}

	platformClient := platform.NewClient(cfg.ProviderClientID, cfg.ProviderClientSecret, logger)
	stateSvc := application.NewStateService(stateRepo, auditSvc, logger)
	resolver := application.NewResolverService(storeRepo, legacyRepo, vault, auditSvc, logger)
	oauthSvc := application.NewOAuthService(
		stateSvc,
		resolver,
		platformClient,
		platformClient,
		auditSvc,
		logger,
		cfg.Scopes,
		cfg.AppURL+"/callback",
	)
	permissionSvc := application.NewPermissionService(resolver, auditSvc, logger)
	replayGuard := dedup.NewRedisReplayGuard(redisClient, logger)

	webhookDispatcher := application.NewWebhookDispatcher(logger)
	webhookDispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(logger, storeRepo, auditSvc))
	webhookDispatcher.RegisterHandler(webhook_handlers.NewShopUpdateHandler(logger))

	// Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/install", installHandler(oauthSvc, logger))
	r.Get("/callback", callbackHandler(oauthSvc, stateSvc, auditSvc, cfg, logger))
	r.Post("/webhooks/{topic}", webhookHandler(webhookDispatcher, replayGuard, auditSvc, cfg.WebhookSecret, logger))

	r.Post("/api/permissions", permissionHandler(permissionSvc, logger))
	r.Get("/api/stores", listStoresHandler(resolver, logger))
	r.Post("/api/stores/{storeId}/primary", setPrimaryHandler(resolver, logger))
	r.Post("/api/stores/{storeId}/permissions", updatePermissionsHandler(resolver, logger))
	r.Delete("/api/stores/{storeId}", removeStoreHandler(resolver, logger))
	r.Post("/api/stores/reconcile", reconcileHandler(resolver, logger))

	logger.Info().Str("port", cfg.Port).Msg("Starting API server")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}

// currentUserID returns the authenticated user supplied by the session
// layer in front of this service. The core never inspects cookies or
// sessions itself.
func currentUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// installHandler starts the OAuth installation flow.
func installHandler(oauthSvc *application.OAuthService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop := r.URL.Query().Get("shop")
		if shop == "" {
			http.Error(w, "shop parameter is required", http.StatusBadRequest)
			return
		}

		authURL, state, err := oauthSvc.BeginInstall(r.Context(), currentUserID(r), shop)
		if err != nil {
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to begin installation")
			http.Error(w, "Failed to begin installation", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookieName,
			Value:    state,
			Path:     "/",
			MaxAge:   int(domain.StateTTL.Seconds()),
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// callbackHandler completes the flow: state, signature, exchange,
// persist. Failures redirect to the error page with a machine-readable
// reason code; the audit log carries the specific internal cause.
func callbackHandler(
	oauthSvc *application.OAuthService,
	stateSvc *application.StateService,
	audit ports.AuditSink,
	cfg config,
	logger zerolog.Logger,
) http.HandlerFunc {
	errorRedirect := func(w http.ResponseWriter, r *http.Request, reason string) {
		metrics.InstallsRejected.WithLabelValues(reason).Inc()
		http.Redirect(w, r, cfg.FrontendURL+"/connect/error?reason="+url.QueryEscape(reason), http.StatusFound)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		shop := r.URL.Query().Get("shop")
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")
		if shop == "" || code == "" || state == "" {
			errorRedirect(w, r, "state")
			return
		}

		shopDomain, err := domain.NormalizeShopDomain(shop)
		if err != nil {
			errorRedirect(w, r, "shop_mismatch")
			return
		}

		cookieState := ""
		if cookie, err := r.Cookie(stateCookieName); err == nil {
			cookieState = cookie.Value
		}

		if err := stateSvc.ValidateAndConsume(ctx, state, cookieState, shopDomain); err != nil {
			if errors.Is(err, domain.ErrShopMismatch) {
				errorRedirect(w, r, "shop_mismatch")
				return
			}
			errorRedirect(w, r, "state")
			return
		}

		if !platform.VerifyCallbackSignature(r.URL.Query(), cfg.ProviderClientSecret) {
			audit.Record(ctx, domain.AuditEvent{
				Kind:       domain.AuditSignatureRejected,
				ShopDomain: shopDomain,
				Reason:     "callback query signature mismatch",
			})
			errorRedirect(w, r, "hmac")
			return
		}

		cred, err := oauthSvc.CompleteInstall(ctx, currentUserID(r), shopDomain, code)
		if err != nil {
			logger.Error().Err(err).Str("shop", shopDomain).Msg("Failed to complete installation")
			errorRedirect(w, r, "token")
			return
		}

		// The single-use cookie has done its job.
		http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

		http.Redirect(w, r, fmt.Sprintf(
			"%s/connect/success?shop=%s",
			cfg.FrontendURL,
			url.QueryEscape(cred.ShopDomain),
		), http.StatusFound)
	}
}

// webhookHandler verifies and dispatches provider webhooks. The raw
// body is read before any parsing; verification uses exactly the bytes
// received. Unknown topics are accepted and ignored; 500 is reserved
// for failures the provider should retry.
func webhookHandler(
	dispatcher *application.WebhookDispatcher,
	replayGuard ports.ReplayGuard,
	audit ports.AuditSink,
	webhookSecret string,
	logger zerolog.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		topic := chi.URLParam(r, "topic")

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		signature := r.Header.Get("X-Provider-Hmac-Sha256")
		if !platform.VerifyWebhookSignature(payload, signature, webhookSecret) {
			metrics.WebhookSignatures.WithLabelValues("rejected").Inc()
			audit.Record(ctx, domain.AuditEvent{
				Kind:       domain.AuditWebhookRejected,
				ShopDomain: r.Header.Get("X-Provider-Shop-Domain"),
				Reason:     "webhook body signature mismatch",
				Metadata:   map[string]string{"topic": topic},
			})
			http.Error(w, "Invalid signature", http.StatusUnauthorized)
			return
		}
		metrics.WebhookSignatures.WithLabelValues("accepted").Inc()

		deliveryID := r.Header.Get("X-Provider-Delivery-Id")
		first, err := replayGuard.FirstDelivery(ctx, deliveryID)
		if err != nil {
			logger.Error().Err(err).Str("deliveryId", deliveryID).Msg("Replay guard unavailable")
			http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
			return
		}
		if !first {
			writeJSON(w, http.StatusOK, map[string]string{"received": "duplicate"})
			return
		}

		event := &domain.WebhookEvent{
			Topic:      topic,
			ShopDomain: r.Header.Get("X-Provider-Shop-Domain"),
			DeliveryID: deliveryID,
			Payload:    payload,
			Verified:   true,
		}

		if err := dispatcher.Dispatch(ctx, event); err != nil {
			logger.Error().Err(err).Str("topic", topic).Msg("Failed to dispatch webhook event")
			http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
	}
}

type permissionRequest struct {
	Action      string   `json:"action"`
	StoreID     string   `json:"storeId"`
	Permission  string   `json:"permission,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	AgentID     string   `json:"agentId,omitempty"`
}

// permissionHandler serves check, check_multiple, and status requests.
func permissionHandler(permissionSvc *application.PermissionService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		if userID == "" {
			writeError(w, logger, domain.ErrAuthenticationRequired)
			return
		}

		var req permissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
		if req.StoreID == "" {
			http.Error(w, "storeId is required", http.StatusBadRequest)
			return
		}

		switch req.Action {
		case "check":
			result, err := permissionSvc.CheckPermission(r.Context(), req.StoreID, userID, req.Permission, req.AgentID)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, result)

		case "check_multiple":
			results, err := permissionSvc.CheckMultiple(r.Context(), req.StoreID, userID, req.Permissions, req.AgentID)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, results)

		case "status":
			summary, err := permissionSvc.GetStatusSummary(r.Context(), req.StoreID, userID, req.AgentID)
			if err != nil {
				writeError(w, logger, err)
				return
			}
			writeJSON(w, http.StatusOK, summary)

		default:
			http.Error(w, "Unknown action", http.StatusBadRequest)
		}
	}
}

// listStoresHandler returns the user's connected stores, tokens
// omitted.
func listStoresHandler(resolver *application.ResolverService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		if userID == "" {
			writeError(w, logger, domain.ErrAuthenticationRequired)
			return
		}

		stores, err := resolver.ListStores(r.Context(), userID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		if stores == nil {
			stores = []*domain.StoreCredential{}
		}
		writeJSON(w, http.StatusOK, stores)
	}
}

// setPrimaryHandler reassigns the user's primary store.
func setPrimaryHandler(resolver *application.ResolverService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		if userID == "" {
			writeError(w, logger, domain.ErrAuthenticationRequired)
			return
		}

		if err := resolver.SetPrimary(r.Context(), userID, chi.URLParam(r, "storeId")); err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

type updatePermissionsRequest struct {
	Permissions    map[string]bool            `json:"permissions"`
	AgentOverrides map[string]map[string]bool `json:"agentOverrides,omitempty"`
}

// updatePermissionsHandler edits a store's permission map and agent
// overrides.
func updatePermissionsHandler(resolver *application.ResolverService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		if userID == "" {
			writeError(w, logger, domain.ErrAuthenticationRequired)
			return
		}

		var req updatePermissionsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		err := resolver.UpdatePermissions(r.Context(), userID, chi.URLParam(r, "storeId"), req.Permissions, req.AgentOverrides)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// removeStoreHandler disconnects a store, or hard-deletes it when
// ?purge=true.
func removeStoreHandler(resolver *application.ResolverService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		if userID == "" {
			writeError(w, logger, domain.ErrAuthenticationRequired)
			return
		}

		storeID := chi.URLParam(r, "storeId")
		var err error
		if r.URL.Query().Get("purge") == "true" {
			err = resolver.Remove(r.Context(), userID, storeID)
		} else {
			err = resolver.Disconnect(r.Context(), userID, storeID)
		}
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// reconcileHandler runs the explicit divergent-domain repair.
func reconcileHandler(resolver *application.ResolverService, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUserID(r)
		if userID == "" {
			writeError(w, logger, domain.ErrAuthenticationRequired)
			return
		}

		report, err := resolver.ReconcileDivergentDomain(r.Context(), userID)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy onto HTTP statuses. External
// messages stay generic; specifics live in the audit log.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrAuthenticationRequired):
		status, message = http.StatusUnauthorized, "authentication required"
	case errors.Is(err, domain.ErrInvalidPermission):
		status, message = http.StatusBadRequest, "invalid permission name"
	case errors.Is(err, domain.ErrCredentialNotFound):
		status, message = http.StatusNotFound, "store not found"
	case errors.Is(err, domain.ErrStorageFailure):
		status, message = http.StatusServiceUnavailable, "temporary storage failure, retry later"
	case errors.Is(err, domain.ErrForgeryRejected), errors.Is(err, domain.ErrShopMismatch):
		status, message = http.StatusUnauthorized, "request rejected"
	default:
		logger.Error().Err(err).Msg("Unhandled error")
	}

	writeJSON(w, status, map[string]string{"error": message})
}
