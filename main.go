package main

import (
	"context"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/alexedwards/scs/pgxstore"
	scs "github.com/alexedwards/scs/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"
)

var (
	BuildTime  = "00000000.000000"
	CommitHash = "0000000"
	GoVersion  = "0.0"
	GitTag     = "0.0"
	BuildType  = "dev"
)

var (
	DashboardWSHub *WSHub
)

// layouts is swapped by the template watcher while handlers read it.
var layouts atomic.Pointer[template.Template]
var sessionManager *scs.SessionManager
var dbpool *pgxpool.Pool
var store = &datasetStore{}

func robotsHandler(w http.ResponseWriter, _ *http.Request) {
	io.WriteString(w, "User-agent: *\nDisallow: /\n\n\n")
}

func customLogger(_ io.Writer, params handlers.LogFormatterParams) {
	r := params.Request
	ua := r.Header.Get("user-agent")
	log.Println("["+r.RemoteAddr+"]", r.Method, params.StatusCode, r.RequestURI, "["+ua+"]")
}

func shouldCache(maxage int, h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Cache-Control", "public, max-age="+strconv.Itoa(maxage))
		h.ServeHTTP(w, r)
	}
}

func loadLayouts(dir string) (*template.Template, error) {
	return template.New("main").Funcs(layoutFuncs).ParseGlob(filepath.Join(dir, "*.gohtml"))
}

func newRouter() *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = myNotFoundHandler()
	router.PathPrefix("/static").Handler(http.StripPrefix("/static/", shouldCache(604800, http.FileServer(http.Dir(cfg.Static)))))
	router.HandleFunc("/robots.txt", robotsHandler)
	router.HandleFunc("/", dashboardHandler).Methods("GET")
	router.HandleFunc("/chart", chartHandler).Methods("GET")
	router.HandleFunc("/about", basicLayoutHandler("about"))

	router.HandleFunc("/toggle/{id:[0-9]+}", toggleHandler).Methods("GET")
	router.HandleFunc("/range/{range}", rangeHandler).Methods("GET")
	router.HandleFunc("/style/{style}", styleHandler).Methods("GET")
	router.HandleFunc("/theme/{theme}", themeHandler).Methods("GET")
	router.HandleFunc("/reset", resetHandler).Methods("GET")

	router.HandleFunc("/api/ws/dashboard", func(w http.ResponseWriter, r *http.Request) {
		APIWSHub(DashboardWSHub, w, r)
	})
	router.HandleFunc("/api/variations", APIcall(APIgetVariations)).Methods("GET")
	router.HandleFunc("/api/data", APIcall(APIgetChartData)).Methods("GET")
	router.HandleFunc("/api/selection", APIcall(APIgetSelection)).Methods("GET")
	router.HandleFunc("/api/selection", APIcall(APIsetSelection)).Methods("POST")
	router.HandleFunc("/api/export.png", measureHandlerTimings(APIcall(APIgetExportPNG))).Methods("GET")
	router.HandleFunc("/api/reload", APIcall(APIreloadDataset)).Methods("POST")
	router.HandleFunc("/api/status", APIcall(APIgetStatus)).Methods("GET")
	if BuildType == "dev" {
		router.HandleFunc("/debug/dataset", debugDatasetHandler)
	}
	return router
}

func watchFiles(watcher *fsnotify.Watcher, layoutsDir, datasetPath string) {
	datasetPath = filepath.Clean(datasetPath)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write != fsnotify.Write && event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if filepath.Clean(event.Name) == datasetPath {
				log.Println("Dataset changed, reloading")
				if err := reloadDataset(context.Background()); err != nil {
					log.Println("Failed to reload dataset:", err)
				}
				continue
			}
			if filepath.Ext(event.Name) != ".gohtml" {
				continue
			}
			log.Println("Updating templates")
			nlayouts, err := loadLayouts(layoutsDir)
			if err != nil {
				log.Println("Error while parsing templates:", err.Error())
			} else {
				layouts.Store(nlayouts)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Println("error:", err)
		}
	}
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}
	configPath := os.Getenv("CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err = loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename: cfg.LogFile,
		MaxSize:  10,   // megabytes
		Compress: true, // disabled by default
	}))

	log.Println()
	log.Println("Conversion dashboard is starting up...")
	log.Printf("Built %s, Ver %s (%s) Go %s\n", BuildTime, GitTag, CommitHash, GoVersion)
	log.Println()

	log.Println("Loading layouts")
	layoutsDir := cfg.Layouts
	if dirstat, err := os.Stat("layouts-" + BuildType); !os.IsNotExist(err) && dirstat.IsDir() {
		layoutsDir = "layouts-" + BuildType + "/"
		log.Println("Using build-specific layouts directory (" + layoutsDir + ")")
	}
	l, err := loadLayouts(layoutsDir)
	if err != nil {
		panic(err)
	}
	layouts.Store(l)

	sessionManager = scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	if cfg.DB != "" {
		log.Println("Connecting to database")
		dbpool, err = pgxpool.Connect(context.Background(), cfg.DB)
		if err != nil {
			log.Fatal(err)
		}
		defer dbpool.Close()
		sstore := pgxstore.New(dbpool)
		sessionManager.Store = sstore
		defer sstore.StopCleanup()
	}

	log.Println("Starting websocket hub")
	DashboardWSHub = NewWSHub()
	go DashboardWSHub.Run()

	log.Println("Loading dataset")
	if err := reloadDataset(context.Background()); err != nil {
		log.Fatal(err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Fatal(err)
	}
	defer watcher.Close()
	go watchFiles(watcher, layoutsDir, cfg.Dataset)
	err = watcher.Add(layoutsDir)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Dataset != datasetSourceDB {
		err = watcher.Add(filepath.Dir(cfg.Dataset))
		if err != nil {
			log.Fatal(err)
		}
	}

	log.Println("Adding routes")
	router := newRouter()
	routerMiddle := sessionManager.LoadAndSave(handlers.CustomLoggingHandler(os.Stdout, handlers.ProxyHeaders(router), customLogger))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routerMiddle,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Println("Started!")
	log.Panic(srv.ListenAndServe())
}
