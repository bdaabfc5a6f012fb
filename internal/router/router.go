package router

import (
	"database/sql"
	"net/http"

	_ "animal-shelter/docs"
	mem "animal-shelter/internal/adapters/storage/memory"
	pg "animal-shelter/internal/adapters/storage/postgres"
	"animal-shelter/internal/domain/activities"
	"animal-shelter/internal/domain/adoptions"
	"animal-shelter/internal/domain/animals"
	"animal-shelter/internal/domain/medical"
	"animal-shelter/internal/middleware"
	"animal-shelter/internal/ports/auth"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	Logger *zap.Logger
}

// Services agrupa los servicios de dominio ya cableados a un store.
type Services struct {
	Animals    *animals.Service
	Medical    *medical.Service
	Adoptions  *adoptions.Service
	Activities *activities.Service
}

// NewServices arma los servicios sobre Postgres si db != nil; si no, sobre un store en memoria compartido.
func NewServices(db *sql.DB, log *zap.Logger) Services {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		animalRepo   animals.Repository
		medicalRepo  medical.Repository
		adoptionRepo adoptions.Repository
		activityRepo activities.Repository
	)
	if db != nil {
		animalRepo = pg.NewAnimalRepo(db)
		medicalRepo = pg.NewMedicalRepo(db)
		adoptionRepo = pg.NewAdoptionRepo(db)
		activityRepo = pg.NewActivityRepo(db)
	} else {
		store := mem.NewStore()
		animalRepo = mem.NewAnimalRepo(store)
		medicalRepo = mem.NewMedicalRepo(store)
		adoptionRepo = mem.NewAdoptionRepo(store)
		activityRepo = mem.NewActivityRepo(store)
	}

	animalsSvc := animals.NewService(animalRepo, log.Named("animals"))
	return Services{
		Animals:    animalsSvc,
		Medical:    medical.NewService(medicalRepo, animalsSvc, log.Named("medical")),
		Adoptions:  adoptions.NewService(adoptionRepo, log.Named("adoptions")),
		Activities: activities.NewService(activityRepo, log.Named("activities")),
	}
}

func NewRouter(opts Options) http.Handler {
	return Mount(NewServices(opts.DB, opts.Logger), opts)
}

// Mount expone svcs por HTTP.
func Mount(svcs Services, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log.Named("http")))

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Ficha y seguimiento comparten el prefijo /animals.
	r.Route("/animals", func(ar chi.Router) {
		ar.Use(middleware.RequireAuth)
		animals.RegisterRoutes(ar, svcs.Animals)
		medical.RegisterRoutes(ar, svcs.Medical)
	})
	adoptions.RegisterRoutes(r, svcs.Adoptions)
	activities.RegisterRoutes(r, svcs.Activities)

	return r
}
