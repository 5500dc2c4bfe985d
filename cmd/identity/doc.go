// Package identity owns taskmgr's accounts: the principal a login proves, the
// stored credential digest it is checked against, and the role it carries.
//
// Stores are read-mostly. The only write is replacing a password digest when
// a legacy digest is upgraded on login.
package identity
