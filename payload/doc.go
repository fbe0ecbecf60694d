// Package payload provides the generic structured edits a ROM project is
// built from: importing or blanking the root image, raw byte patches,
// relocatable strings, IPS patches, bank expansion and free-space
// declarations.
//
// Each payload implements project.Payload and is registered by NewRegistry
// under a stable kind so project files can be decoded.
package payload
