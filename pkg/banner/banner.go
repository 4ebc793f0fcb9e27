package banner

import (
	"fmt"

	"fairlead/pkg/config"
)

const banner = `
███████╗ █████╗ ██╗██████╗ ██╗     ███████╗ █████╗ ██████╗
██╔════╝██╔══██╗██║██╔══██╗██║     ██╔════╝██╔══██╗██╔══██╗
█████╗  ███████║██║██████╔╝██║     █████╗  ███████║██║  ██║
██╔══╝  ██╔══██║██║██╔══██╗██║     ██╔══╝  ██╔══██║██║  ██║
██║     ██║  ██║██║██║  ██║███████╗███████╗██║  ██║██████╔╝
╚═╝     ╚═╝  ╚═╝╚═╝╚═╝  ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝╚═════╝
`

// Print renders the startup banner with the effective runtime settings
// and a readiness checklist for production deployments.
func Print(cfg *config.Config, addr, dbPath, source, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if source != "" {
		fmt.Printf("Config:   %s\n", source)
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/submissions            - Create an encrypted submission")
	fmt.Println("GET  /v1/submissions            - List submissions (filterable)")
	fmt.Println("POST /v1/submissions/{id}/status - Advance the lifecycle")
	fmt.Println("GET  /v1/submissions/{id}/timeline - Audit trail")
	fmt.Println("POST /v1/rotations/check        - Detect scheduling conflicts")
	fmt.Println("GET  /healthz, /metrics, /docs/")

	fmt.Println("\n== Production? ================================================")
	if cfg == nil {
		fmt.Println("- No config loaded; running on flags/env only")
		return
	}
	if n := len(cfg.Security.APIKeys.Backend); n > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", n)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for backend services)")
	}
	if n := len(cfg.Security.APIKeys.Frontend); n > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", n)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for client access)")
	}
	if n := len(cfg.Security.APIKeys.Admin); n > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", n)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
	}
	if cfg.Server.TLS.CertFile != "" && cfg.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}
	if cfg.Security.Encryption.MasterKeyHex != "" || cfg.Security.Encryption.MasterKeyFile != "" {
		fmt.Println("- Payload encryption: master key configured")
	} else {
		fmt.Println("- Payload encryption: MISSING master key (set security.encryption or FAIRLEAD_MASTER_KEY_HEX)")
	}
	if cfg.Retention.Enabled {
		fmt.Printf("- Retention: enabled (cron=%s period=%s)\n", cfg.Retention.Cron, cfg.Retention.Period)
	} else {
		fmt.Println("- Retention: disabled")
	}
	fmt.Println("\n== Logs: ======================================================")
}
