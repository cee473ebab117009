package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/consent-lineage/consent-sync-service/api"
	"github.com/consent-lineage/consent-sync-service/client"
	"github.com/consent-lineage/consent-sync-service/devicestore"
	"github.com/consent-lineage/consent-sync-service/domain"
	"github.com/consent-lineage/consent-sync-service/pkg"
	"github.com/consent-lineage/consent-sync-service/policy"
)

const confPort = "port"
const confInterface = "interface"
const version = `Consent sync service v0.1 -- HEAD`

var rootCommand = &cobra.Command{
	Use:     "consent-sync",
	Short:   "consent lineage sync commands",
	Version: version,
}

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Start the consent sync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		instance := pkg.ConsentSyncInstance()
		instance.Config = pkg.ConsentSyncConfig{
			MongoURI:        viper.GetString("mongo-uri"),
			MongoDatabase:   viper.GetString("mongo-database"),
			RedisAddress:    viper.GetString("redis-address"),
			LineagePath:     viper.GetString("lineage-file"),
			DefaultValidity: viper.GetDuration("validity"),
			SkewTolerance:   viper.GetDuration("skew-tolerance"),
			DedupTTL:        viper.GetDuration("dedup-ttl"),
			RequestedScopes: viper.GetStringSlice("scopes"),
		}
		if err := instance.Configure(); err != nil {
			return err
		}
		if err := instance.Start(); err != nil {
			return err
		}
		defer func() {
			if err := instance.Shutdown(); err != nil {
				logrus.StandardLogger().WithError(err).Error("shutdown failed")
			}
		}()

		server := echo.New()
		server.HideBanner = true
		server.Use(middleware.Logger())
		api.RegisterHandlers(server, &api.Wrapper{
			Engine:          instance.Engine,
			RequestedScopes: instance.Config.RequestedScopes,
		})
		addr := fmt.Sprintf("%s:%d", viper.GetString(confInterface), viper.GetInt(confPort))
		return server.Start(addr)
	},
}

var submitCommand = &cobra.Command{
	Use:     "submit [deviceId] [consentString]?",
	Example: "submit 1234-5678-ABCD --purpose ads --purpose analytics",
	Short:   "Capture a consent record for a device and sync it to the server",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 {
			return fmt.Errorf("requires at least a deviceId")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		deviceID := args[0]

		var payload []byte
		if len(args) > 1 {
			payload = []byte(args[1])
		} else {
			purposes := map[string]bool{}
			for _, purpose := range viper.GetStringSlice("purpose") {
				name, granted := purpose, true
				if split := strings.SplitN(purpose, "=", 2); len(split) == 2 {
					name = split[0]
					granted = split[1] != "false"
				}
				purposes[name] = granted
			}
			encoded, err := policy.EncodePayload(purposes)
			if err != nil {
				return err
			}
			payload = encoded
		}

		store, err := devicestore.OpenLevelDB(viper.GetString("device-store"))
		if err != nil {
			return err
		}
		defer store.Close()

		syncClient := client.New(store, viper.GetString("server"))
		record := domain.NewConsentRecord(deviceID, payload, domain.TimeNow())
		if err := syncClient.Capture(record); err != nil {
			return err
		}

		result, err := syncClient.Submit(cmd.Context(), deviceID)
		if err != nil {
			return err
		}
		fmt.Printf("accepted=%v decision=%s validated_at=%s\n",
			result.Accepted, result.Decision, result.ServerTimestamp.Format(time.RFC3339))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	serveFlags := serveCommand.Flags()
	serveFlags.String(confInterface, "localhost", "Server interface binding")
	serveFlags.IntP(confPort, "p", 1324, "Server listen port")
	serveFlags.String("mongo-uri", "", "Mongo connection string for the authoritative store (empty: in-memory)")
	serveFlags.String("mongo-database", "consent", "Mongo database name")
	serveFlags.String("redis-address", "", "Redis address for the duplicate-submission cache (empty: in-process)")
	serveFlags.String("lineage-file", "", "Path of the JSONL lineage log (empty: in-memory)")
	serveFlags.Duration("validity", 0, "Server-assigned consent lifetime (0: no expiry)")
	serveFlags.Duration("skew-tolerance", domain.DefaultSkewTolerance, "Accepted clock skew on created_at")
	serveFlags.Duration("dedup-ttl", 5*time.Minute, "How long submission attempts are remembered")
	serveFlags.StringSlice("scopes", nil, "Purposes requested on every submission")

	submitFlags := submitCommand.Flags()
	submitFlags.String("server", "http://localhost:1324", "Sync server base URL")
	submitFlags.String("device-store", "consent-device-store", "Path of the local device store")
	submitFlags.StringSlice("purpose", nil, "Granted purpose, name or name=false, repeatable")

	for _, flags := range []*pflag.FlagSet{serveFlags, submitFlags} {
		if err := viper.BindPFlags(flags); err != nil {
			panic(err)
		}
	}
	viper.SetEnvPrefix("CONSENT_SYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCommand.AddCommand(serveCommand)
	rootCommand.AddCommand(submitCommand)

	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
