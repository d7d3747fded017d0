// Package sshchan adapts an established golang.org/x/crypto/ssh client
// to the collaborator interfaces the deployer and transport consume:
// one-shot command execution, exec channels carrying agent stdio as
// events, and file upload by streaming into a remote cat.
//
// The package deliberately stops at adaptation: dialing, host key
// verification and authentication belong to the caller that owns the
// *ssh.Client.
package sshchan
