// Package secret resolves credential references in configuration values.
//
// A value of the form "secretref:<provider>:<ref>" is replaced by what the
// named provider returns for ref. References may also appear inline, as in
// "postgres://app:secretref:file:/run/secrets/pg@db/app". Two providers ship
// with the package:
//
//   - file: reads the file at ref, as mounted by Docker or Kubernetes
//     secrets, and strips one trailing newline.
//   - env: reads the environment variable named ref.
package secret
