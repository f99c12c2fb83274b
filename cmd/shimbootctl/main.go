// This file is part of shimboot
// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/canonical/shimboot/bootman"
	"github.com/canonical/shimboot/shimsystemd"
)

var (
	rootPath  string
	espPath   string
	vendor    string
	imageMode bool
	verbose   bool
)

func newSession() *bootman.Session {
	bootRoot := espPath
	if bootRoot == "" {
		bootRoot = filepath.Join(rootPath, "boot")
	}
	// Operating on anything but the running system means an image is
	// being assembled.
	image := imageMode || rootPath != "/"
	return bootman.NewSession(rootPath, bootRoot, vendor, image)
}

// withBootloader runs fn against the selected, initialized backend and
// tears everything down afterwards.
func withBootloader(fn func(loader bootman.Bootloader) error) error {
	sess := newSession()
	if err := sess.Lock(); err != nil {
		return err
	}
	defer sess.Unlock()

	loaders := []bootman.Bootloader{shimsystemd.New()}
	loader, err := bootman.SelectBootloader(sess, bootman.CapGPT|bootman.CapUEFI, loaders)
	if err != nil {
		return err
	}
	defer loader.Destroy()

	return fn(loader)
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "shimbootctl",
		Short:         "Install and update the shim and systemd-boot bootloaders on the ESP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&rootPath, "path", "/", "root of the target system or image")
	rootCmd.PersistentFlags().StringVar(&espPath, "esp-path", "", "mount point of the ESP (default <path>/boot)")
	rootCmd.PersistentFlags().StringVar(&vendor, "vendor", "ubuntu", "ESP namespace directory")
	rootCmd.PersistentFlags().BoolVar(&imageMode, "image", false, "treat the target as an offline image")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Install or update the bootloaders as needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBootloader(func(loader bootman.Bootloader) error {
				switch {
				case loader.NeedsInstall():
					logrus.Info("performing first install")
					return loader.Install()
				case loader.NeedsUpdate():
					logrus.Info("updating bootloaders")
					return loader.Update()
				default:
					logrus.Info("bootloaders are up to date")
					return nil
				}
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Report whether the bootloaders need installation or update",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBootloader(func(loader bootman.Bootloader) error {
				fmt.Printf("needs install: %v\n", loader.NeedsInstall())
				fmt.Printf("needs update:  %v\n", loader.NeedsUpdate())
				return nil
			})
		},
	})

	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
