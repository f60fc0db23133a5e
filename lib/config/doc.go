// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Switchboard
// commands.
//
// Configuration is a single YAML file located by, in order, the
// --config flag, the SWITCHBOARD_CONFIG environment variable, or
// ~/.switchboard/config.yaml. A missing file is not an error: the
// defaults give a working installation under ~/.switchboard, so the
// server runs with zero configuration. Environment variables never
// override file values; the only expansion is ${VAR} and
// ${VAR:-default} inside path fields, for portability.
package config
