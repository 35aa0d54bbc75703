package challenge

// Built-in phrases shown by bot-protection interstitials. Matching is
// case- and whitespace-insensitive, so entries are written as they appear
// on the page.
//
// Keep entries at phrase length. Single words would fuzzy-match short,
// unrelated titles.
var titlePatterns = []string{
	// English / Cloudflare
	"Just a moment...",
	"Just a moment",
	"Checking your browser",
	"Checking your browser before accessing",
	"Please wait while we verify",
	"Attention Required! | Cloudflare",
	"Please Wait... | Cloudflare",
	"DDoS protection by Cloudflare",
	"DDoS-Guard",
	"One more step",
	"Verifying you are human",
	"Verify you are human",
	"Are you a robot?",
	"Human verification",
	"Security check required",
	"Access to this page has been denied",
	"JavaScript is required",

	// Spanish
	"Un momento, por favor",
	"Verificando su navegador",
	"Comprobando su navegador",
	// French
	"Un instant...",
	"Vérification de votre navigateur",
	"Veuillez patienter",
	// German
	"Einen Moment bitte",
	"Überprüfung Ihres Browsers",
	"Bitte warten Sie",
	// Portuguese
	"Um momento...",
	"Verificando seu navegador",
	"Por favor, aguarde",
	// Italian
	"Solo un momento...",
	"Controllo del browser in corso",
	"Attendere prego",
	// Russian
	"Один момент…",
	"Проверка браузера",
	"Пожалуйста, подождите",
	// Japanese
	"しばらくお待ちください",
	"ブラウザを確認しています",
	// Chinese
	"请稍候…",
	"正在检查您的浏览器",
	"正在验证您是否是真人",
	// Korean
	"잠시만 기다리십시오…",
	"브라우저를 확인하는 중",
}

var bodyPatterns = []string{
	// English / Cloudflare
	"Checking if the site connection is secure",
	"Checking your browser before accessing",
	"needs to review the security of your connection before proceeding",
	"Verify you are human by completing the action below",
	"Please complete the security check to access",
	"Please stand by, while we are checking your browser",
	"This process is automatic. Your browser will redirect to your requested content shortly",
	"Enable JavaScript and cookies to continue",
	"Please turn JavaScript on and reload the page",
	"Please enable cookies",
	"DDoS protection by",
	"Performance & security by Cloudflare",
	"Ray ID:",
	"Why do I have to complete a CAPTCHA?",
	"press and hold the button",

	// Spanish
	"Verificando si la conexión del sitio es segura",
	"Verifique que es un ser humano",
	// French
	"Vérification de la sécurité de votre connexion",
	"Vérifiez que vous êtes un humain",
	// German
	"Überprüfen, ob die Verbindung zur Website sicher ist",
	"Bestätigen Sie, dass Sie ein Mensch sind",
	// Portuguese
	"Verificando se a conexão do site é segura",
	"Confirme que você é humano",
	// Italian
	"Verifica della sicurezza della connessione al sito",
	"Verifica di essere un essere umano",
	// Russian
	"Проверка безопасности подключения к сайту",
	"Подтвердите, что вы человек",
	// Japanese
	"サイト接続のセキュリティを確認しています",
	"人間であることを確認します",
	// Chinese
	"正在检查站点连接是否安全",
	"确认您是真人",
	// Korean
	"사이트 연결이 안전한지 확인하는 중",
	"사람인지 확인하십시오",
}
