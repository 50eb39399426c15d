package service

// commonPasswords is a small deny list of the most frequently leaked
// passwords. Lookup is by lowercased value.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"passw0rd":    {},
	"123456":      {},
	"1234567":     {},
	"12345678":    {},
	"123456789":   {},
	"1234567890":  {},
	"qwerty":      {},
	"qwerty123":   {},
	"qwertyuiop":  {},
	"abc123":      {},
	"abcd1234":    {},
	"111111":      {},
	"11111111":    {},
	"iloveyou":    {},
	"admin":       {},
	"welcome":     {},
	"welcome1":    {},
	"monkey":      {},
	"dragon":      {},
	"letmein":     {},
	"letmein1":    {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"baseball":    {},
	"superman":    {},
	"batman":      {},
	"trustno1":    {},
	"master":      {},
	"shadow":      {},
	"michael":     {},
	"jennifer":    {},
	"charlie":     {},
	"donald":      {},
	"freedom":     {},
	"whatever":    {},
	"starwars":    {},
	"computer":    {},
	"internet":    {},
	"secret":      {},
	"hello123":    {},
	"zaq12wsx":    {},
	"1q2w3e4r":    {},
	"qazwsx":      {},
	"654321":      {},
	"666666":      {},
	"121212":      {},
	"asdfghjkl":   {},
	"asdf1234":    {},
}
