package main

import (
	"context"
	"flag"
	"log"

	"github.com/danfelbm/astra-sub000/config"
	"github.com/danfelbm/astra-sub000/services"

	"github.com/joho/godotenv"
)

// import-runner executes a pending import job from the command line. It is
// the recovery path for jobs whose API process died before dispatching them,
// and the convenient way to run large files outside the request lifecycle.
func main() {
	jobID := flag.Uint("job", 0, "id of the pending import job to run")
	flag.Parse()

	if *jobID == 0 {
		log.Fatal("usage: import-runner -job <id>")
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	config.InitDB()

	svc := services.NewImportJobService(nil)
	svc.Run(context.Background(), *jobID)
}
