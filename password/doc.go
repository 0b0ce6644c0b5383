// Package password is a reference goIdentity.CredentialVerifier for
// argon2id hashes in PHC form:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// The engine itself never sees hashes; storing and upgrading them belongs
// to the user directory.
package password
