package browser

// stealthScript masks the usual headless-automation tells before any page
// script runs: the webdriver flag, the empty language list, the missing
// window.chrome object, and a stable canvas fingerprint.
const stealthScript = `
(() => {
    Object.defineProperty(navigator, 'webdriver', { get: () => false });
    Object.defineProperty(navigator, 'languages', { get: () => ['it-IT', 'it', 'en-US', 'en'] });

    window.chrome = window.chrome || { runtime: {} };

    const originalGetImageData = CanvasRenderingContext2D.prototype.getImageData;
    CanvasRenderingContext2D.prototype.getImageData = function (x, y, width, height) {
        const imageData = originalGetImageData.call(this, x, y, width, height);
        const pixels = imageData.data;
        for (let i = 0; i < pixels.length; i += 4) {
            pixels[i] = pixels[i] + Math.floor(Math.random() * 3) - 1;
            pixels[i + 1] = pixels[i + 1] + Math.floor(Math.random() * 3) - 1;
            pixels[i + 2] = pixels[i + 2] + Math.floor(Math.random() * 3) - 1;
        }
        return imageData;
    };

    const originalQuery = navigator.permissions.query.bind(navigator.permissions);
    navigator.permissions.query = async (param) => {
        if (param && (param.name === 'notifications' || param.name === 'clipboard-read' || param.name === 'clipboard-write')) {
            return { state: 'prompt', onchange: null };
        }
        return originalQuery(param);
    };
})();
`
