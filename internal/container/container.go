package container

import (
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joshua-takyi/eventhub/internal/config"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/notify"
	"github.com/joshua-takyi/eventhub/internal/oracle"
	"github.com/joshua-takyi/eventhub/internal/services"
	"github.com/supabase-community/supabase-go"
	"go.mongodb.org/mongo-driver/mongo"
)

// Container holds all application dependencies
type Container struct {
	Logger *slog.Logger
	Config *config.Config
	// Database clients
	SupabaseClient *supabase.Client
	MongoDBClient  *mongo.Client
	Mongo          *models.MongodbRepo

	TokenValidator        *helpers.TokenValidator
	UserService           *services.UserService
	EventService          *services.EventService
	MembershipService     *services.MembershipService
	RecommendationService *services.RecommendationService
}

type Clients struct {
	Supabase        *supabase.Client
	SupabaseService *supabase.Client
	MongoDB         *mongo.Client
	// Cloudinary is optional; image endpoints fail without it.
	Cloudinary *cloudinary.Cloudinary
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, logger *slog.Logger, clients Clients) *Container {
	supa := models.SupabaseNewRepo(clients.Supabase, clients.SupabaseService, cfg.SupabaseURL, cfg.SupabaseAnonKey)
	mongo := models.MongodbNewRepo(clients.MongoDB, cfg.MongoDBDatabase)

	var images helpers.ImageStore
	if clients.Cloudinary != nil {
		images = helpers.NewCloudinaryStore(clients.Cloudinary)
	}

	mailer := notify.NewEmailJS(notify.Config{
		ServiceID:  cfg.EmailJSService,
		TemplateID: cfg.EmailJSTemplate,
		PublicKey:  cfg.EmailJSKey,
	}, logger.With("component", "emailjs"))
	if !mailer.Enabled() {
		logger.Warn("EmailJS is not configured, attendee notifications are disabled")
	}

	completer := oracle.New(oracle.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	}, logger.With("component", "oracle"))
	if !completer.Configured() {
		logger.Warn("OPENAI_API_KEY is not set, recommendations will return the full catalog")
	}

	return &Container{
		Logger:         logger,
		Config:         cfg,
		SupabaseClient: clients.Supabase,
		MongoDBClient:  clients.MongoDB,
		Mongo:          mongo,
		TokenValidator: helpers.NewTokenValidator(cfg.SupabaseURL),
		UserService:    services.NewUserService(supa, images),
		EventService: services.NewEventService(services.EventServiceArgs{
			Events:     mongo,
			Attendance: mongo,
			Tx:         mongo,
			Images:     images,
			Profiles:   supa,
			Notifier:   mailer,
			Logger:     logger.With("service", "events"),
		}),
		MembershipService: services.NewMembershipService(services.MembershipServiceArgs{
			Events:     mongo,
			Attendance: mongo,
			Tx:         mongo,
			Profiles:   supa,
			Logger:     logger.With("service", "membership"),
		}),
		RecommendationService: services.NewRecommendationService(services.RecommendationServiceArgs{
			Oracle:     completer,
			Events:     mongo,
			Attendance: mongo,
			Profiles:   supa,
			Mode:       services.ParseMatchMode(cfg.MatchMode),
			Logger:     logger.With("service", "recommendations"),
		}),
	}
}

// Close waits for background notification work and stops JWKS refresh.
func (c *Container) Close() {
	c.EventService.Wait()
	c.TokenValidator.Close()
}
