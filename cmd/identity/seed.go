package identity

import "time"

// seedEpoch is the creation time stamped on seeded accounts.
var seedEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seed(id int64, username, digest string, roleID int) AccountAuth {
	return AccountAuth{
		Account: Account{
			ID:        id,
			Username:  username,
			State:     StateActive,
			RoleID:    roleID,
			RoleName:  SeedRoles()[roleID],
			CreatedAt: seedEpoch,
			UpdatedAt: seedEpoch,
		},
		PasswordDigest: digest,
	}
}

// SeedAccounts returns the development account catalogue.
// Password digests use the legacy md5 scheme.
func SeedAccounts() []AccountAuth {
	return []AccountAuth{
		seed(1, "sa", "2259bb6ac53b249da929405e8f5ee733", 1),
		seed(2, "Emily.Johnson", "5bc217716a3034f144e99dd31f524837", 2),
		seed(3, "Haruki.Saito", "fb1bde4cbc58e0f6f50e57eb83a4289d", 2),
		seed(4, "Huong.Tran", "ea8e9f09d10c210bcb142cbdc0de5228", 2),
		seed(5, "Ginny.Lewis", "1bcf030ed6b36276fc5af512d96876a3", 2),
		seed(6, "Minho.Lee", "5040354424d0b0d6220138bdaf3a51a7", 3),
		seed(7, "WeiLing.Tan", "921b1c9ded555364edc908e0001633f5", 3),
		seed(8, "Aarav.Sharma", "b816aad52c7136f2293b44ed3b89744b", 9),
		seed(9, "May.Sukjai", "3c57c2ee90eb246afb95d5643c7c0610", 9),
		seed(10, "Li.Wang", "67767c5a8e9ffbe2924f62854f7c6024", 4),
		seed(11, "Jisoo.Kim", "35e7cb8b2603e3adf8589211e9891a12", 4),
		seed(12, "Rizky.Putra", "90f5ae45ee5a13e2f5e0adbc4babb4c0", 9),
		seed(13, "Linh.Nguyen", "d3a8fceda9b1b2e5973bfd7eec6ac8a1", 9),
		seed(14, "Anan.Chaiyawan", "a681dc1d69d6145670fa9d31652b6938", 5),
		seed(15, "Kelvin.Ng", "d97af6e848f042963daeeeeae290943f", 5),
		seed(16, "Chen.Liu", "17f692bcae0c64c8910a7c915f2cf3c9", 9),
		seed(17, "Ashley.Brown", "1cf648caad21152c13f4e90b6c4cab60", 9),
		seed(18, "Aiko.Nakamura", "a60595dc6fdd839261ba928693ceafad", 6),
		seed(19, "David.Miller", "dbfa1d434ed49efa2ff5f39d0358abd3", 6),
		seed(20, "Thao.Pham", "bbcb8e127a669979aa099002e4c6f8cf", 9),
		seed(21, "Yui.Takahashi", "7e2f55efb66cffe432a7505e82e601bd", 9),
		seed(22, "Nur.Aisyah", "31a6ee527514d5be84039a5529bb8493", 7),
		seed(23, "Kenta.Fujimoto", "772c2c09d5718afb72790fc25c315c82", 7),
		seed(24, "Myung.Kim", "9c3c38ad731b26b0628c9e35ccb38129", 9),
		seed(25, "Phuc.Tran", "e458f6eb31622f20f544060ce8428948", 9),
		seed(26, "Tram.Pham", "5011d9e38bea853a86cc0bbaa79c4703", 8),
		seed(27, "Mei.Zhao", "ad80c63a0c88673609cd3f626fa8af72", 8),
	}
}

// SeedRoles returns the role catalogue keyed by id.
func SeedRoles() map[int]string {
	return map[int]string{
		1: "System Admin",
		2: "Project Manager",
		3: "Frontend Leader",
		4: "Backend Leader",
		5: "QA Leader",
		6: "DevOps Leader",
		7: "UI/UX Design Leader",
		8: "HR",
		9: "Employee",
	}
}
