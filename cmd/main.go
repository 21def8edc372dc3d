/*
Copyright 2025 Midas Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/midaslabs/midas"
	"github.com/midaslabs/midas/config"
	"github.com/midaslabs/midas/database"
	"github.com/midaslabs/midas/internal/notification"
)

// CLI wraps the root cobra command.
type CLI struct {
	cmd *cobra.Command
}

// midasInstance holds the service instance and its configuration, shared by
// all subcommands.
type midasInstance struct {
	midas *midas.Midas
	cnf   *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads configuration and initializes the service before any command
// runs.
func preRun(app *midasInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("midas.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newMidas, err := setupMidas(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.midas = newMidas
		app.cnf = cnf
		return nil
	}
}

func setupMidas(cfg *config.Configuration) (*midas.Midas, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}
	newMidas, err := midas.NewMidas(db)
	if err != nil {
		return nil, fmt.Errorf("error creating midas: %v", err)
	}
	return newMidas, nil
}

// NewCLI builds the command tree: server, workers, and migrations.
func NewCLI() *CLI {
	var configFile string
	m := &midasInstance{}

	var rootCmd = &cobra.Command{
		Use:   "midas",
		Short: "Ledgered banking core",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./midas.json", "Configuration file for midas")
	rootCmd.PersistentPreRunE = preRun(m)

	rootCmd.AddCommand(serverCommands(m))
	rootCmd.AddCommand(workerCommands(m))
	rootCmd.AddCommand(migrateCommands(m))

	return &CLI{cmd: rootCmd}
}

func (w CLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
