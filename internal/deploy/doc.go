// Package deploy installs and starts the remote agent binary on a host.
//
// # Sequence
//
// DeployAndStart runs six steps, each a commit point:
//
//  1. Detect the remote CPU architecture via `uname -m`. Only a small
//     closed set of targets is supported; anything else is terminal.
//  2. Resolve the matching bundled binary through a BinaryResolver.
//  3. Probe the deployed binary's version. Exact match skips upload;
//     anything else, including a failed probe, means upload.
//  4. If needed: mkdir -p the remote dir, transfer the bytes, chmod +x.
//     A failure anywhere here aborts before any process is started.
//  5. Open a fresh exec channel, start the agent, wrap it in a
//     transport.Transport.
//  6. Handshake: bounded ping, then sys/info decoded into the identity
//     shape. A failed handshake discards the transport.
//
// Because steps 1-4 fully validate state before step 5 ever runs, no
// deployment error leaves a half-deployed remote process behind.
//
// # Collaborators
//
// The secure connection is external: HostRunner executes one-shot
// commands and opens exec channels, FileTransfer writes file content.
// The sshchan package provides both over an established SSH client;
// tests substitute scripted fakes.
package deploy
