// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for commsnet binaries.
//
// Configuration is loaded from a single yaml file specified by the
// COMMSNET_CONFIG environment variable or a --config flag. There are
// no fallbacks or automatic discovery — this keeps deployments
// deterministic and auditable.
//
// The file may contain development and production sections that
// override base values when the environment matches. The transport
// backend (simulated vs. live) is selected here and nowhere else:
// sessions receive a constructed transport factory and never inspect
// backend types at runtime.
package config
